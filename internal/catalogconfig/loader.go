package catalogconfig

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// Filenames conventionally loaded from CatalogConfigDir.
const (
	intentKeywordsFile = "intent_keywords.json"
	entityPatternsFile = "entity_patterns.json"
	funnelFeaturesFile = "funnel_features.json"
	promptTemplateFile = "prompt_template.txt"
)

// Load reads the four config artifacts from dir. A missing or malformed
// file is fatal (ConfigInvalid); an individual bad regex pattern inside
// entity_patterns.json is logged and dropped rather than failing the load.
func Load(dir string) (*Config, error) {
	intent, err := loadIntentKeywords(filepath.Join(dir, intentKeywordsFile))
	if err != nil {
		return nil, err
	}

	entities, err := loadEntityPatterns(filepath.Join(dir, entityPatternsFile))
	if err != nil {
		return nil, err
	}

	funnel, err := loadFunnelConfig(filepath.Join(dir, funnelFeaturesFile))
	if err != nil {
		return nil, err
	}

	tmpl, err := loadPromptTemplate(filepath.Join(dir, promptTemplateFile))
	if err != nil {
		return nil, err
	}

	return &Config{
		Intent:   intent,
		Entities: entities,
		Funnel:   *funnel,
		Template: tmpl,
	}, nil
}

type rawIntentEntry struct {
	Topic       string   `json:"topic"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

func loadIntentKeywords(path string) (IntentKeywords, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "read intent keywords", err)
	}
	if len(raw) == 0 {
		return IntentKeywords{}, nil
	}

	var entries []rawIntentEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "parse intent keywords", err)
	}

	out := make(IntentKeywords, 0, len(entries))
	for _, e := range entries {
		if e.Topic == "" || len(e.Keywords) == 0 {
			slog.Warn("catalogconfig: skipping intent entry with empty topic or keywords")
			continue
		}
		out = append(out, IntentKeywordEntry{
			Topic:       model.Topic(e.Topic),
			Keywords:    lowerAll(e.Keywords),
			Description: e.Description,
		})
	}
	return out, nil
}

type rawPatternSet struct {
	Patterns []string `json:"patterns"`
	Examples []string `json:"examples"`
}

func loadEntityPatterns(path string) (EntityPatterns, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "read entity patterns", err)
	}

	var parsed map[string]rawPatternSet
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "parse entity patterns", err)
	}

	out := make(EntityPatterns, len(parsed))
	for kind, set := range parsed {
		compiled := make([]*regexp.Regexp, 0, len(set.Patterns))
		for _, p := range set.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				slog.Warn("catalogconfig: dropping invalid entity pattern", "kind", kind, "pattern", p, "err", err)
				continue
			}
			compiled = append(compiled, re)
		}
		out[kind] = EntityPatternSet{Patterns: compiled, Examples: set.Examples}
	}
	return out, nil
}

type rawOption struct {
	OptionID    string            `json:"option_id"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Filters     []rawFieldFilter  `json:"filters"`
}

type rawFieldFilter struct {
	Field   string   `json:"field"`
	Op      string   `json:"op"`
	Value   string   `json:"value"`
	Values  []string `json:"values"`
	Numeric float64  `json:"numeric"`
}

type rawFeature struct {
	FeatureID  string      `json:"feature_id"`
	PromptText string      `json:"prompt_text"`
	Options    []rawOption `json:"options"`
}

type rawFunnelFile struct {
	Features         map[string]rawFeature         `json:"features"`
	Priorities       map[string][]string           `json:"priorities"`
	ScenarioKeywords map[string][]string           `json:"scenario_keywords"`
	TriggerKeywords  struct {
		Vague      []string `json:"vague"`
		Comparison []string `json:"comparison"`
	} `json:"trigger_keywords"`
}

func loadFunnelConfig(path string) (*FunnelConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "read funnel features", err)
	}

	var parsed rawFunnelFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, core.Wrap(core.KindConfigInvalid, "parse funnel features", err)
	}

	features := make(map[string]model.Question, len(parsed.Features))
	for id, f := range parsed.Features {
		opts := make([]model.Option, 0, len(f.Options))
		for _, o := range f.Options {
			filters := make([]model.FieldFilter, 0, len(o.Filters))
			for _, ff := range o.Filters {
				filters = append(filters, model.FieldFilter{
					Field:   ff.Field,
					Op:      model.FilterOp(ff.Op),
					Value:   ff.Value,
					Values:  ff.Values,
					Numeric: ff.Numeric,
				})
			}
			opts = append(opts, model.Option{
				OptionID:    o.OptionID,
				Label:       o.Label,
				Description: o.Description,
				Filters:     filters,
			})
		}
		features[id] = model.Question{
			FeatureID:  f.FeatureID,
			PromptText: f.PromptText,
			Options:    opts,
		}
	}

	priorities := make(map[model.Scenario][]string, len(parsed.Priorities))
	for scenario, order := range parsed.Priorities {
		priorities[model.Scenario(scenario)] = order
	}

	scenarioKeywords := make(map[model.Scenario][]string, len(parsed.ScenarioKeywords))
	for scenario, kws := range parsed.ScenarioKeywords {
		scenarioKeywords[model.Scenario(scenario)] = lowerAll(kws)
	}

	return &FunnelConfig{
		Features:   features,
		Priorities: priorities,
		TriggerKeywords: TriggerKeywords{
			Vague:      lowerAll(parsed.TriggerKeywords.Vague),
			Comparison: lowerAll(parsed.TriggerKeywords.Comparison),
		},
		ScenarioKeywords: scenarioKeywords,
	}, nil
}

func loadPromptTemplate(path string) (PromptTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", core.Wrap(core.KindConfigInvalid, "read prompt template", err)
	}
	tmpl := string(raw)
	if !strings.Contains(tmpl, "{context}") || !strings.Contains(tmpl, "{query}") {
		return "", core.New(core.KindConfigInvalid, fmt.Sprintf("prompt template %s missing {context} or {query} placeholder", path))
	}
	return PromptTemplate(tmpl), nil
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}

// TopicFor scans the ordered keyword list and returns the first topic whose
// keyword set matches a substring of queryLower, plus whether any matched.
func (ik IntentKeywords) TopicFor(queryLower string) (model.Topic, bool) {
	for _, entry := range ik {
		for _, kw := range entry.Keywords {
			if strings.Contains(queryLower, kw) {
				return entry.Topic, true
			}
		}
	}
	return "", false
}
