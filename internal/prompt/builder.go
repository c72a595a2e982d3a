// Package prompt builds the LLM prompt from the template + retrieval
// context and parses the model's JSON reply back into a canonical
// Response (spec.md §4.I).
package prompt

import (
	"fmt"
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// topicFields restricts the rendered context to the fields relevant to a
// topic; comparison (and anything unlisted) renders every known field.
var topicFields = map[model.Topic][]string{
	model.TopicCPU:         {"cpu"},
	model.TopicGPU:         {"gpu"},
	model.TopicMemory:      {"memory", "storage"},
	model.TopicDisplay:     {"lcd"},
	model.TopicBattery:     {"battery"},
	model.TopicPortability: {"weight", "lcd"},
}

// allFields is the canonical field projection used for comparison and any
// topic without a narrower projection.
var allFields = []string{
	"cpu", "gpu", "memory", "storage", "lcd", "battery", "wireless", "weight", "price",
}

// Builder renders prompts from the loaded template.
type Builder struct {
	template catalogconfig.PromptTemplate
}

// New builds a Builder from the loaded prompt template.
func New(template catalogconfig.PromptTemplate) *Builder {
	return &Builder{template: template}
}

// Build renders the system + user prompt for one turn. rows is the
// retrieval result; targetNames fixes column order; preferences, when
// non-empty, is rendered as the user's funnel-stated choices.
func (b *Builder) Build(query string, intent model.Intent, rows []model.SKU, targetNames []string, preferences map[string]string) (system, user string) {
	fields := fieldsFor(intent.Topic)
	contextBlock := formatContext(rows, fields)

	var analysis strings.Builder
	fmt.Fprintf(&analysis, "Focus on topic %q for these models: %s.\n", intent.Topic, strings.Join(targetNames, ", "))
	analysis.WriteString("Reply with a single JSON object of the form {\"summary\": string, \"table\": [{\"feature\": string, ...one key per model...}]}.\n")
	if len(preferences) > 0 {
		analysis.WriteString("The user selected these preferences via a guided questionnaire:\n")
		for feature, label := range preferences {
			fmt.Fprintf(&analysis, "- %s: %s\n", feature, label)
		}
	}

	rendered := string(b.template)
	rendered = strings.Replace(rendered, "{context}", contextBlock, 1)
	rendered = strings.Replace(rendered, "{query}", query, 1)

	return analysis.String(), rendered
}

func fieldsFor(topic model.Topic) []string {
	if topic == model.TopicComparison {
		return allFields
	}
	if fields, ok := topicFields[topic]; ok {
		return fields
	}
	return allFields
}

// formatContext serializes rows into a compact, human-readable block
// containing only the requested fields, one SKU per paragraph.
func formatContext(rows []model.SKU, fields []string) string {
	var sb strings.Builder
	for i, r := range rows {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "Model: %s\n", r.ModelName)
		for _, f := range fields {
			v := r.Field(f)
			if v == "" {
				v = "N/A"
			}
			fmt.Fprintf(&sb, "%s: %s\n", f, v)
		}
	}
	return sb.String()
}
