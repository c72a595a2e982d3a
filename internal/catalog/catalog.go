// Package catalog loads the SKU catalog from Postgres once at process
// startup and serves all lookups from immutable in-memory indices for the
// rest of the process lifetime (spec.md §4.A).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// seriesDigitRun matches a run of 3 or more consecutive digits. The series
// key is the longest such run in the model name; ties keep the first.
var seriesDigitRun = regexp.MustCompile(`\d{3,}`)

// deriveSeriesKey implements the documented series-key rule: the longest
// digit run of length >= 3 anywhere in the model name. Returns "" if none.
func deriveSeriesKey(modelName string) string {
	runs := seriesDigitRun.FindAllString(modelName, -1)
	best := ""
	for _, r := range runs {
		if len(r) > len(best) {
			best = r
		}
	}
	return best
}

// isTestRow reports whether a model name is excluded test data: empty,
// "Test Model", or matching the "Test *" pattern.
func isTestRow(modelName string) bool {
	trimmed := strings.TrimSpace(modelName)
	if trimmed == "" {
		return true
	}
	return strings.HasPrefix(trimmed, "Test ") || trimmed == "Test Model"
}

// Catalog is the closed, read-only set of SKUs loaded at startup. Nothing
// on this type mutates after Load returns; lookups never touch the
// database again.
type Catalog struct {
	all      []model.SKU            // stable alphabetic order
	byName   map[string]model.SKU   // lowercased model name -> SKU
	bySeries map[string][]model.SKU // lowercased series key -> SKUs, ordered by model name
	names    []string               // original-case model names, closed set
	series   []string               // original-case series keys, closed set
}

// Load reads every row from the skus table, derives series keys, filters
// test rows, and builds the in-memory indices. Called once at startup; a
// failure here is fatal to the process.
func Load(ctx context.Context, pool *pgxpool.Pool) (*Catalog, error) {
	rows, err := pool.Query(ctx, `SELECT model_name, fields FROM skus`)
	if err != nil {
		return nil, core.Wrap(core.KindCatalogUnavailable, "query skus", err)
	}
	defer rows.Close()

	c := &Catalog{
		byName:   make(map[string]model.SKU),
		bySeries: make(map[string][]model.SKU),
	}
	seriesSeen := make(map[string]bool)

	for rows.Next() {
		var (
			modelName  string
			fieldsJSON []byte
		)
		if err := rows.Scan(&modelName, &fieldsJSON); err != nil {
			return nil, core.Wrap(core.KindCatalogUnavailable, "scan sku row", err)
		}
		if isTestRow(modelName) {
			continue
		}

		fields := make(map[string]string)
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
				return nil, core.Wrap(core.KindCatalogUnavailable, fmt.Sprintf("parse fields for %s", modelName), err)
			}
		}

		seriesKey := deriveSeriesKey(modelName)
		sku := model.SKU{ModelName: modelName, SeriesKey: seriesKey, Fields: fields}
		c.all = append(c.all, sku)
		c.byName[strings.ToLower(modelName)] = sku
		key := strings.ToLower(seriesKey)
		c.bySeries[key] = append(c.bySeries[key], sku)
		c.names = append(c.names, modelName)
		if !seriesSeen[key] {
			seriesSeen[key] = true
			c.series = append(c.series, seriesKey)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.Wrap(core.KindCatalogUnavailable, "iterate sku rows", err)
	}

	sort.Slice(c.all, func(i, j int) bool { return c.all[i].ModelName < c.all[j].ModelName })
	for _, skus := range c.bySeries {
		sort.Slice(skus, func(i, j int) bool { return skus[i].ModelName < skus[j].ModelName })
	}
	sort.Strings(c.names)
	sort.Strings(c.series)

	if len(c.all) == 0 {
		slog.Warn("catalog: loaded zero SKUs, every lookup will report unknown")
	} else {
		slog.Info("catalog loaded", "skus", len(c.all), "series", len(c.series))
	}

	return c, nil
}

// ByName returns the SKUs whose model name is in names, preserving the
// order of names. Unknown names are silently skipped.
func (c *Catalog) ByName(names []string) []model.SKU {
	out := make([]model.SKU, 0, len(names))
	for _, n := range names {
		if sku, ok := c.byName[strings.ToLower(n)]; ok {
			out = append(out, sku)
		}
	}
	return out
}

// BySeries returns every SKU whose series key is in keys, ordered by
// model name. Unknown keys contribute nothing.
func (c *Catalog) BySeries(keys []string) []model.SKU {
	var out []model.SKU
	for _, k := range keys {
		out = append(out, c.bySeries[strings.ToLower(k)]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelName < out[j].ModelName })
	return out
}

// HasSeries reports whether seriesKey names a known series.
func (c *Catalog) HasSeries(seriesKey string) bool {
	_, ok := c.bySeries[strings.ToLower(seriesKey)]
	return ok
}

// All returns every SKU in the catalog, in stable alphabetic order.
func (c *Catalog) All() []model.SKU {
	return c.all
}

// Names returns the closed set of model names, sorted.
func (c *Catalog) Names() []string {
	return c.names
}

// Series returns the closed set of series keys, sorted.
func (c *Catalog) Series() []string {
	return c.series
}

// HasName reports whether modelName names a known SKU.
func (c *Catalog) HasName(modelName string) bool {
	_, ok := c.byName[strings.ToLower(modelName)]
	return ok
}
