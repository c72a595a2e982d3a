package funnel

import (
	"testing"
	"time"

	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

func testConfig() catalogconfig.FunnelConfig {
	return catalogconfig.FunnelConfig{
		Features: map[string]model.Question{
			"cpu": {
				FeatureID:  "cpu",
				PromptText: "How much CPU power?",
				Options: []model.Option{
					{OptionID: "high", Label: "High performance", Filters: []model.FieldFilter{{Field: "cpu_tier", Op: model.FilterGreaterEq, Numeric: 7}}},
					{OptionID: "low", Label: "Everyday use"},
				},
			},
			"battery": {
				FeatureID:  "battery",
				PromptText: "How important is battery life?",
				Options: []model.Option{
					{OptionID: "long", Label: "All-day battery"},
				},
			},
		},
		Priorities: map[model.Scenario][]string{
			model.ScenarioBusiness: {"battery", "cpu"},
		},
		TriggerKeywords: catalogconfig.TriggerKeywords{
			Vague: []string{"good laptop", "recommend"},
		},
		ScenarioKeywords: map[model.Scenario][]string{
			model.ScenarioBusiness: {"office", "business"},
		},
	}
}

func TestShouldActivate_VagueQuery(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	active, scenario := c.ShouldActivate("recommend me a good laptop for office", model.Intent{Shape: model.ShapeUnknown, Topic: model.TopicGeneral})
	if !active {
		t.Fatal("expected activation for vague query")
	}
	if scenario != model.ScenarioBusiness {
		t.Errorf("expected business scenario, got %s", scenario)
	}
}

func TestShouldActivate_ExplicitModelBypasses(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	active, _ := c.ShouldActivate("recommend me a good laptop AG958", model.Intent{Shape: model.ShapeSpecificModel, Topic: model.TopicGeneral})
	if active {
		t.Fatal("expected explicit model query to bypass the funnel")
	}
}

func TestStartThenAnswer_Completes(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	sessionID, q, err := c.Start("need a business laptop", model.ScenarioBusiness)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FeatureID != "battery" {
		t.Fatalf("expected first question 'battery', got %q", q.FeatureID)
	}

	ev, err := c.Answer(sessionID, "long")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventNextQuestion || ev.Question.FeatureID != "cpu" {
		t.Fatalf("expected next question 'cpu', got %+v", ev)
	}

	ev, err = c.Answer(sessionID, "high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventComplete {
		t.Fatalf("expected Complete event, got %+v", ev)
	}
	if len(ev.Complete.Preferences) != 2 {
		t.Errorf("expected 2 preferences, got %v", ev.Complete.Preferences)
	}
	if len(ev.Complete.DBFilters) != 1 {
		t.Errorf("expected 1 filter from the cpu answer, got %v", ev.Complete.DBFilters)
	}
}

func TestAnswer_InvalidOptionKeepsState(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	sessionID, _, _ := c.Start("need a business laptop", model.ScenarioBusiness)

	ev, err := c.Answer(sessionID, "nonexistent")
	if err == nil {
		t.Fatal("expected InvalidAnswer error")
	}
	if ev.Kind != EventNextQuestion || ev.Question.FeatureID != "battery" {
		t.Errorf("expected current question re-emitted, got %+v", ev)
	}
}

func TestAnswer_UnknownSession(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	_, err := c.Answer("does-not-exist", "high")
	if err == nil {
		t.Fatal("expected SessionNotFound error")
	}
	if kind, ok := core.KindOf(err); !ok || kind != core.KindSessionNotFound {
		t.Errorf("expected KindSessionNotFound for a session_id that was never issued, got %v", kind)
	}
}

func TestAnswer_ExpiredSessionReturnsSessionExpired(t *testing.T) {
	// issued entries live at 2x ttl (see New), so sleeping past ttl but
	// well short of 2*ttl lands in the "expired, not unknown" window.
	c := New(testConfig(), 30*time.Millisecond, time.Hour)
	sessionID, _, err := c.Start("need a business laptop", model.ScenarioBusiness)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(45 * time.Millisecond)

	_, err = c.Answer(sessionID, "long")
	if err == nil {
		t.Fatal("expected SessionExpired error")
	}
	if kind, ok := core.KindOf(err); !ok || kind != core.KindSessionExpired {
		t.Errorf("expected KindSessionExpired for an expired session_id, got %v", kind)
	}
}

func TestAnswerBatch_Completes(t *testing.T) {
	c := New(testConfig(), time.Hour, time.Hour)
	sessionID, questions, err := c.StartBatch("need a business laptop", model.ScenarioBusiness)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	ev, err := c.AnswerBatch(sessionID, map[string]string{"battery": "long", "cpu": "high"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventComplete {
		t.Fatalf("expected Complete event, got %+v", ev)
	}
}
