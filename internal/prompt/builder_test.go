package prompt

import (
	"strings"
	"testing"

	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

func testTemplate() catalogconfig.PromptTemplate {
	return catalogconfig.PromptTemplate("Context:\n{context}\n\nQuestion: {query}")
}

func TestBuild_FiltersFieldsByTopic(t *testing.T) {
	rows := []model.SKU{
		{ModelName: "AG958", Fields: map[string]string{"cpu": "i7", "gpu": "RTX 4060"}},
	}
	b := New(testTemplate())

	_, user := b.Build("how fast is the cpu", model.Intent{Topic: model.TopicCPU}, rows, []string{"AG958"}, nil)

	if !strings.Contains(user, "cpu: i7") {
		t.Errorf("expected cpu field in context, got %q", user)
	}
	if strings.Contains(user, "gpu: RTX 4060") {
		t.Errorf("expected gpu field to be filtered out for a cpu topic, got %q", user)
	}
}

func TestBuild_ComparisonIncludesAllFields(t *testing.T) {
	rows := []model.SKU{
		{ModelName: "AG958", Fields: map[string]string{"cpu": "i7", "gpu": "RTX 4060"}},
	}
	b := New(testTemplate())

	_, user := b.Build("compare these", model.Intent{Topic: model.TopicComparison}, rows, []string{"AG958"}, nil)

	if !strings.Contains(user, "cpu: i7") || !strings.Contains(user, "gpu: RTX 4060") {
		t.Errorf("expected all fields for comparison topic, got %q", user)
	}
}

func TestBuild_MissingFieldRendersNA(t *testing.T) {
	rows := []model.SKU{
		{ModelName: "AG958", Fields: map[string]string{}},
	}
	b := New(testTemplate())

	_, user := b.Build("how's the battery", model.Intent{Topic: model.TopicBattery}, rows, []string{"AG958"}, nil)

	if !strings.Contains(user, "battery: N/A") {
		t.Errorf("expected N/A for missing field, got %q", user)
	}
}

func TestBuild_PortabilityTopicProjectsWeightAndLCDNotSize(t *testing.T) {
	rows := []model.SKU{
		{ModelName: "AG958", Fields: map[string]string{"weight": "1.2kg", "lcd": "14in", "cpu": "i7"}},
	}
	b := New(testTemplate())

	_, user := b.Build("is it light and compact", model.Intent{Topic: model.TopicPortability}, rows, []string{"AG958"}, nil)

	if !strings.Contains(user, "weight: 1.2kg") || !strings.Contains(user, "lcd: 14in") {
		t.Errorf("expected weight and lcd fields in context, got %q", user)
	}
	if strings.Contains(user, "size:") {
		t.Errorf("expected no non-existent size field in context, got %q", user)
	}
	if strings.Contains(user, "cpu: i7") {
		t.Errorf("expected cpu field to be filtered out for a portability topic, got %q", user)
	}
}

func TestBuild_SubstitutesPlaceholders(t *testing.T) {
	rows := []model.SKU{{ModelName: "AG958", Fields: map[string]string{"cpu": "i7"}}}
	b := New(testTemplate())

	_, user := b.Build("what cpu does it have", model.Intent{Topic: model.TopicCPU}, rows, []string{"AG958"}, nil)

	if !strings.Contains(user, "Question: what cpu does it have") {
		t.Errorf("expected query substituted into template, got %q", user)
	}
	if !strings.Contains(user, "Model: AG958") {
		t.Errorf("expected context substituted into template, got %q", user)
	}
}

func TestBuild_IncludesPreferences(t *testing.T) {
	rows := []model.SKU{{ModelName: "AG958", Fields: map[string]string{"cpu": "i7"}}}
	b := New(testTemplate())

	system, _ := b.Build("recommend one", model.Intent{Topic: model.TopicGeneral}, rows, []string{"AG958"}, map[string]string{"budget": "under $1000"})

	if !strings.Contains(system, "budget: under $1000") {
		t.Errorf("expected funnel preference rendered into analysis block, got %q", system)
	}
}
