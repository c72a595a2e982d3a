package catalogconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, intentKeywordsFile), `[
		{"topic": "cpu", "keywords": ["cpu", "processor"], "description": "CPU questions"},
		{"topic": "gpu", "keywords": ["gpu", "graphics"], "description": "GPU questions"}
	]`)

	mustWrite(t, filepath.Join(dir, entityPatternsFile), `{
		"MODEL_NAME": {"patterns": ["(?i)AG\\d{3}"], "examples": ["AG958"]},
		"SERIES_KEY": {"patterns": ["[0-9+"]}
	}`)

	mustWrite(t, filepath.Join(dir, funnelFeaturesFile), `{
		"features": {
			"cpu": {
				"feature_id": "cpu",
				"prompt_text": "How much CPU power do you need?",
				"options": [
					{"option_id": "high", "label": "High performance", "filters": [{"field": "cpu_tier", "op": "gte", "numeric": 7}]}
				]
			}
		},
		"priorities": {"gaming": ["gpu", "cpu"], "business": ["battery", "portability"]},
		"scenario_keywords": {"gaming": ["gaming", "fps"]},
		"trigger_keywords": {"vague": ["good laptop", "recommend"], "comparison": ["vs", "compare"]}
	}`)

	mustWrite(t, filepath.Join(dir, promptTemplateFile), "Context:\n{context}\n\nQuestion: {query}\n")

	return dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_AllArtifacts(t *testing.T) {
	dir := writeConfigDir(t)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Intent) != 2 {
		t.Fatalf("expected 2 intent entries, got %d", len(cfg.Intent))
	}
	if cfg.Intent[0].Topic != model.TopicCPU {
		t.Errorf("expected first topic cpu, got %s", cfg.Intent[0].Topic)
	}

	// SERIES_KEY has a deliberately invalid pattern and should be dropped,
	// leaving an empty (not absent) pattern set rather than failing the load.
	if set, ok := cfg.Entities["SERIES_KEY"]; !ok {
		t.Fatal("expected SERIES_KEY entry to be present despite invalid pattern")
	} else if len(set.Patterns) != 0 {
		t.Errorf("expected invalid pattern to be dropped, got %d patterns", len(set.Patterns))
	}

	if _, ok := cfg.Funnel.Features["cpu"]; !ok {
		t.Fatal("expected cpu feature to load")
	}
	if len(cfg.Funnel.Priorities["gaming"]) != 2 {
		t.Errorf("expected 2 priorities for gaming, got %d", len(cfg.Funnel.Priorities["gaming"]))
	}
	if len(cfg.Funnel.TriggerKeywords.Vague) != 2 {
		t.Errorf("expected 2 vague trigger keywords, got %d", len(cfg.Funnel.TriggerKeywords.Vague))
	}

	if !contains(string(cfg.Template), "{context}") {
		t.Error("expected prompt template to retain {context} placeholder")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for missing config directory contents")
	}
	if kind, ok := core.KindOf(err); !ok || kind != core.KindConfigInvalid {
		t.Errorf("expected ConfigInvalid, got %v (ok=%v)", kind, ok)
	}
}

func TestLoad_PromptTemplateMissingPlaceholder(t *testing.T) {
	dir := writeConfigDir(t)
	mustWrite(t, filepath.Join(dir, promptTemplateFile), "no placeholders here")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for prompt template missing placeholders")
	}
}

func TestIntentKeywords_TopicFor(t *testing.T) {
	ik := IntentKeywords{
		{Topic: model.TopicCPU, Keywords: []string{"cpu", "processor"}},
		{Topic: model.TopicGPU, Keywords: []string{"gpu", "graphics"}},
	}

	topic, ok := ik.TopicFor("how fast is the processor on this model")
	if !ok || topic != model.TopicCPU {
		t.Errorf("expected cpu match, got %s (ok=%v)", topic, ok)
	}

	_, ok = ik.TopicFor("what color options are available")
	if ok {
		t.Error("expected no match for unrelated query")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
