// Package retrieval implements the retrieval planner (spec.md §4.H):
// mapping a resolved Intent into a SKU set plus field projection, merging
// catalog rows and vector hits.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// CatalogLookup is the subset of Catalog the planner needs.
type CatalogLookup interface {
	ByName(names []string) []model.SKU
	BySeries(keys []string) []model.SKU
	All() []model.SKU
}

// VectorSearcher is the subset of the vector store the planner needs.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Ranked, error)
}

// Ranked mirrors vectorstore.Ranked without importing that package, to
// keep the planner's dependency surface narrow.
type Ranked struct {
	ModelName string
	Rank      int
}

// Planner runs the retrieval algorithm described in spec.md §4.H.
type Planner struct {
	catalog        CatalogLookup
	vectors        VectorSearcher
	defaultSeries  []string
	vectorK        int
	timeout        time.Duration
}

// Config bundles the dependencies needed to construct a Planner.
type Config struct {
	Catalog       CatalogLookup
	Vectors       VectorSearcher
	DefaultSeries []string // fallback series set when funnel filters yield nothing
	VectorK       int
	Timeout       time.Duration
}

// New builds a Planner from Config.
func New(cfg Config) *Planner {
	return &Planner{
		catalog:       cfg.Catalog,
		vectors:       cfg.Vectors,
		defaultSeries: cfg.DefaultSeries,
		vectorK:       cfg.VectorK,
		timeout:       cfg.Timeout,
	}
}

// Input bundles everything the planner needs for one turn: the resolved
// intent plus, for a funnel-completion path, the translated filters and
// enhanced query.
type Input struct {
	Intent    model.Intent
	DBFilters []model.FieldFilter
	// EnhancedQuery is the text used for vector enrichment: the funnel's
	// enhanced_query when completing a funnel, otherwise the caller's
	// original query text.
	EnhancedQuery string
}

// Result is the planner's output: the resolved rows and their target
// names, in the order I and J must render columns.
type Result struct {
	Rows        []model.SKU
	TargetNames []string
}

// Plan implements the retrieval algorithm. A vector search error during
// enrichment degrades to catalog-only rows; if the planner's internal
// timeout has expired by the end of planning, Plan returns an empty Result
// and a RetrievalTimeout error instead.
func (p *Planner) Plan(ctx context.Context, in Input) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.resolveRows(in)
	if err != nil {
		return Result{}, err
	}

	if shouldEnrich(in.Intent, rows) {
		rows = p.enrich(ctx, in, rows)
	}

	targetNames := make([]string, len(rows))
	for i, r := range rows {
		targetNames[i] = r.ModelName
	}

	if err := ctx.Err(); err != nil {
		slog.Warn("retrieval: internal timeout expired, returning empty result")
		return Result{}, core.New(core.KindRetrievalTimeout, "retrieval timed out")
	}

	return Result{Rows: rows, TargetNames: targetNames}, nil
}

func (p *Planner) resolveRows(in Input) ([]model.SKU, error) {
	switch in.Intent.Shape {
	case model.ShapeSpecificModel:
		return p.catalog.ByName(in.Intent.ModelNames), nil
	case model.ShapeSeries:
		return p.catalog.BySeries(in.Intent.SeriesKeys), nil
	default:
		return p.resolveFunnelCompletion(in)
	}
}

func (p *Planner) resolveFunnelCompletion(in Input) ([]model.SKU, error) {
	if len(in.DBFilters) == 0 {
		return p.catalog.BySeries(p.defaultSeries), nil
	}

	var out []model.SKU
	for _, sku := range p.catalog.All() {
		if matchesAll(sku, in.DBFilters) {
			out = append(out, sku)
		}
	}
	if len(out) == 0 {
		return p.catalog.BySeries(p.defaultSeries), nil
	}
	return out, nil
}

func matchesAll(sku model.SKU, filters []model.FieldFilter) bool {
	for _, f := range filters {
		if !matches(sku, f) {
			return false
		}
	}
	return true
}

func matches(sku model.SKU, f model.FieldFilter) bool {
	value := sku.Field(f.Field)
	switch f.Op {
	case model.FilterEquals:
		return value == f.Value
	case model.FilterIn:
		for _, v := range f.Values {
			if value == v {
				return true
			}
		}
		return false
	case model.FilterLessEq, model.FilterGreaterEq:
		n, ok := parseNumeric(value)
		if !ok {
			return false
		}
		if f.Op == model.FilterLessEq {
			return n <= f.Numeric
		}
		return n >= f.Numeric
	default:
		return false
	}
}

func shouldEnrich(intent model.Intent, rows []model.SKU) bool {
	if len(rows) <= 1 {
		return false
	}
	return intent.Topic == model.TopicGeneral || intent.Topic == model.TopicUnclear
}

func (p *Planner) enrich(ctx context.Context, in Input, rows []model.SKU) []model.SKU {
	hits, err := p.vectors.Search(ctx, in.EnhancedQuery, p.vectorK)
	if err != nil {
		slog.Warn("retrieval: vector enrichment unavailable, proceeding on catalog rows only", "error", err)
		return rows
	}

	byName := make(map[string]model.SKU, len(rows))
	for _, r := range rows {
		byName[r.ModelName] = r
	}

	var reordered []model.SKU
	seen := make(map[string]bool)
	for _, h := range hits {
		if sku, ok := byName[h.ModelName]; ok && !seen[h.ModelName] {
			reordered = append(reordered, sku)
			seen[h.ModelName] = true
		}
	}
	for _, r := range rows {
		if !seen[r.ModelName] {
			reordered = append(reordered, r)
			seen[r.ModelName] = true
		}
	}
	return reordered
}

// AvailabilityField returns the spec field name gated by the availability
// check for a given topic, or "" if the topic does not name one. Mirrors
// the topic->field mapping in prompt.Builder and respond.Fallback.
func AvailabilityField(topic model.Topic) string {
	switch topic {
	case model.TopicCPU, model.TopicGPU, model.TopicMemory, model.TopicBattery:
		return string(topic)
	case model.TopicDisplay:
		return "lcd"
	default:
		return ""
	}
}

// DataUnavailableInfo is the structured payload J needs to build its
// "not registered" reply: the missing field and the affected SKU names.
type DataUnavailableInfo struct {
	Field string
	Names []string
}

// CheckAvailability implements H's availability check: if every row is
// missing the topic's field, retrieval reports DataUnavailable.
func CheckAvailability(topic model.Topic, rows []model.SKU) error {
	field := AvailabilityField(topic)
	if field == "" || len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.Field(field) != "" {
			return nil
		}
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.ModelName
	}
	sort.Strings(names)
	info := DataUnavailableInfo{Field: field, Names: names}
	return core.WithData(core.KindDataUnavailable, field+": "+strings.Join(names, ", "), info)
}

func parseNumeric(s string) (float64, bool) {
	var n float64
	var frac float64 = 1
	seenDigit := false
	seenDot := false
	neg := false
	i := 0
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			d := float64(c - '0')
			if seenDot {
				frac /= 10
				n += d * frac
			} else {
				n = n*10 + d
			}
		case c == '.' && !seenDot:
			seenDot = true
		default:
			// stop at first non-numeric character (e.g. unit suffixes like "16GB")
			i = len(s)
		}
	}
	if !seenDigit {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
