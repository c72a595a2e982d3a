// Package catalogconfig loads the four static artifacts that drive intent
// extraction, the funnel, and prompting (spec.md §4.D): intent keywords,
// entity patterns, funnel features, and the prompt template. All four are
// loaded once at startup and exposed as immutable, read-only values.
package catalogconfig

import (
	"regexp"

	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// IntentKeywordEntry binds a topic to the keywords that select it. Order
// within the slice is authoritative: entity extraction scans topics in
// declaration order and takes the first match (spec.md §4.E). A JSON array
// is used, rather than a JSON object, specifically so this order survives
// the round trip through encoding/json without relying on object-key order.
type IntentKeywordEntry struct {
	Topic       model.Topic
	Keywords    []string
	Description string
}

// IntentKeywords is the ordered list of topic -> keyword bindings.
type IntentKeywords []IntentKeywordEntry

// EntityPatternSet is one entity kind's compiled regex patterns.
type EntityPatternSet struct {
	Patterns []*regexp.Regexp
	Examples []string
}

// EntityPatterns maps an entity kind (e.g. "MODEL_NAME", "SERIES_KEY") to
// its compiled pattern set.
type EntityPatterns map[string]EntityPatternSet

// TriggerKeywords are the substring lists that decide funnel activation
// and forced comparison topic (spec.md §4.E, §4.F).
type TriggerKeywords struct {
	Vague      []string
	Comparison []string
}

// FunnelConfig is the funnel's static question/priority/trigger data.
type FunnelConfig struct {
	Features        map[string]model.Question
	Priorities      map[model.Scenario][]string
	TriggerKeywords TriggerKeywords
	ScenarioKeywords map[model.Scenario][]string
}

// PromptTemplate is the LLM prompt skeleton; it must contain exactly the
// placeholders "{context}" and "{query}".
type PromptTemplate string

// Config bundles the four loaded artifacts.
type Config struct {
	Intent   IntentKeywords
	Entities EntityPatterns
	Funnel   FunnelConfig
	Template PromptTemplate
}
