// Package respond implements J: shaping a parsed LLM reply, or any
// downstream failure, into the final Direct response (spec.md §4.J).
// Fallbacks are first-class: their shape is indistinguishable from an
// LLM-produced reply.
package respond

import (
	"fmt"
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
	"github.com/laptop-mgfd/dialogue-core/internal/retrieval"
)

const fallbackSummary = "Here is what the catalog shows; the LLM analysis step was unavailable for this turn."

// Shape returns the final Response for a successful LLM parse. It is a
// pass-through: canonicalization already happened in the prompt package.
func Shape(parsed model.Response) model.Response {
	return parsed
}

// Unavailable builds the prose-only "not registered" reply for H's
// DataUnavailable error (no LLM call is made on this path).
func Unavailable(info retrieval.DataUnavailableInfo) model.Response {
	return model.Response{
		Summary: fmt.Sprintf("%s is not registered for %s.", info.Field, strings.Join(info.Names, ", ")),
		Table:   []model.Row{},
	}
}

// Fallback builds the rule-based reply directly from rows when the LLM or
// parser step failed. topic selects which fields become table rows;
// targetNames fixes column order.
func Fallback(topic model.Topic, rows []model.SKU, targetNames []string) model.Response {
	fields := fallbackFields(topic)

	table := make([]model.Row, 0, len(fields))
	for _, field := range fields {
		row := model.Row{"feature": field}
		for _, name := range targetNames {
			row[name] = valueFor(rows, name, field)
		}
		table = append(table, row)
	}

	return model.Response{Summary: fallbackSummary, Table: table}
}

// RecoveryForError maps a downstream error to its recovery reply per the
// §7 table. ok is false when err does not carry a recognized kind, in
// which case the caller should treat it as an unexpected failure.
func RecoveryForError(err error, topic model.Topic, rows []model.SKU, targetNames []string) (model.Response, bool) {
	kind, ok := core.KindOf(err)
	if !ok {
		return model.Response{}, false
	}

	switch kind {
	case core.KindDataUnavailable:
		if data, ok := core.DataOf(err); ok {
			if info, ok := data.(retrieval.DataUnavailableInfo); ok {
				return Unavailable(info), true
			}
		}
		return model.Response{Summary: err.Error(), Table: []model.Row{}}, true
	case core.KindLLMUnavailable, core.KindLLMTimeout, core.KindLLMEmpty,
		core.KindParseFailure, core.KindTableShapeError:
		return Fallback(topic, rows, targetNames), true
	case core.KindCatalogUnavailable:
		return model.Response{
			Summary: "The catalog is temporarily unavailable; please try again shortly.",
			Table:   []model.Row{},
		}, true
	case core.KindRetrievalTimeout:
		return model.Response{
			Summary: "This is taking longer than expected; please try again shortly.",
			Table:   []model.Row{},
		}, true
	default:
		return model.Response{}, false
	}
}

func fallbackFields(topic model.Topic) []string {
	switch topic {
	case model.TopicComparison:
		return []string{"cpu", "gpu", "memory", "storage", "lcd", "battery", "wireless", "weight", "price"}
	case model.TopicCPU:
		return []string{"cpu"}
	case model.TopicGPU:
		return []string{"gpu"}
	case model.TopicMemory:
		return []string{"memory", "storage"}
	case model.TopicDisplay:
		return []string{"lcd"}
	case model.TopicBattery:
		return []string{"battery"}
	case model.TopicPortability:
		return []string{"weight", "lcd"}
	default:
		return []string{"cpu", "gpu", "memory", "storage", "lcd", "battery", "wireless", "weight", "price"}
	}
}

func valueFor(rows []model.SKU, modelName, field string) string {
	for _, r := range rows {
		if r.ModelName == modelName {
			if v := r.Field(field); v != "" {
				return v
			}
			return "N/A"
		}
	}
	return "N/A"
}
