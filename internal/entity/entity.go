// Package entity implements the pure query -> Intent extraction function
// (spec.md §4.E): SKU/series recognition by regex against the closed
// catalog sets, plus a declaration-ordered topic assignment.
package entity

import (
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/catalog"
	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// Extractor holds the immutable config needed to extract intents, plus
// two closures over the catalog's closed name/series sets. It has no
// mutable state and is safe for concurrent use.
type Extractor struct {
	patterns           catalogconfig.EntityPatterns
	keywords           catalogconfig.IntentKeywords
	comparisonTriggers []string
	catHasName         func(string) bool
	catHasSeries       func(string) bool
}

// New builds an Extractor from the loaded config and catalog.
func New(cfg *catalogconfig.Config, cat *catalog.Catalog) *Extractor {
	return &Extractor{
		patterns:           cfg.Entities,
		keywords:           cfg.Intent,
		comparisonTriggers: cfg.Funnel.TriggerKeywords.Comparison,
		catHasName:         cat.HasName,
		catHasSeries:       cat.HasSeries,
	}
}

// Extract implements extract(query) -> Intent.
func (x *Extractor) Extract(query string) model.Intent {
	lower := strings.ToLower(query)

	modelNames := x.matchAgainst(query, "MODEL_NAME", x.catHasName)
	seriesKeys := x.matchAgainst(query, "SERIES_KEY", x.catHasSeries)

	topic, ok := x.keywords.TopicFor(lower)
	if !ok {
		topic = model.TopicGeneral
	}
	if len(modelNames) >= 2 && containsAny(lower, x.comparisonTriggers) {
		topic = model.TopicComparison
	}

	return model.Intent{
		ModelNames: modelNames,
		SeriesKeys: seriesKeys,
		Topic:      topic,
		Shape:      shapeOf(modelNames, seriesKeys),
	}
}

// shapeOf implements the shape rule from spec.md §3.
func shapeOf(modelNames, seriesKeys []string) model.Shape {
	if len(modelNames) > 0 {
		return model.ShapeSpecificModel
	}
	if len(seriesKeys) > 0 {
		return model.ShapeSeries
	}
	return model.ShapeUnknown
}

// matchAgainst runs every compiled pattern for kind against query, keeps
// first-occurrence-ordered, deduplicated hits, and filters them through
// valid, which rejects hallucinated names/series not in the catalog.
func (x *Extractor) matchAgainst(query, kind string, valid func(string) bool) []string {
	set, ok := x.patterns[kind]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var ordered []string
	for _, re := range set.Patterns {
		for _, m := range re.FindAllString(query, -1) {
			key := strings.ToLower(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			ordered = append(ordered, m)
		}
	}

	out := make([]string, 0, len(ordered))
	for _, m := range ordered {
		if valid(m) {
			out = append(out, m)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
