package router

import (
	"testing"

	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

type stubActivator struct {
	active   bool
	scenario model.Scenario
}

func (s stubActivator) ShouldActivate(query string, intent model.Intent) (bool, model.Scenario) {
	return s.active, s.scenario
}

type stubSeries struct {
	known map[string]bool
	all   []string
}

func (s stubSeries) HasSeries(key string) bool { return s.known[key] }
func (s stubSeries) Series() []string           { return s.all }

func TestRoute_ListAll(t *testing.T) {
	d := Route("please list all models", model.Intent{}, stubActivator{}, stubSeries{})
	if d.Kind != DecisionListAll {
		t.Errorf("expected list_all, got %s", d.Kind)
	}
}

func TestRoute_FunnelTrigger(t *testing.T) {
	d := Route("i need a good laptop", model.Intent{Shape: model.ShapeUnknown}, stubActivator{active: true, scenario: model.ScenarioBusiness}, stubSeries{})
	if d.Kind != DecisionFunnelTrigger || d.Scenario != model.ScenarioBusiness {
		t.Errorf("expected funnel_trigger/business, got %+v", d)
	}
}

func TestRoute_UnknownSeries(t *testing.T) {
	cat := stubSeries{known: map[string]bool{"958": true}, all: []string{"958", "819"}}
	d := Route("777 系列有哪些？", model.Intent{}, stubActivator{}, cat)
	if d.Kind != DecisionUnknownSeries {
		t.Fatalf("expected unknown_series, got %s", d.Kind)
	}
	if len(d.UnknownTokens) != 1 || d.UnknownTokens[0] != "777" {
		t.Errorf("expected unknown token 777, got %v", d.UnknownTokens)
	}
}

func TestRoute_Direct(t *testing.T) {
	intent := model.Intent{ModelNames: []string{"AG958"}, Shape: model.ShapeSpecificModel}
	d := Route("AG958的規格", intent, stubActivator{}, stubSeries{})
	if d.Kind != DecisionDirect {
		t.Errorf("expected direct, got %s", d.Kind)
	}
	if d.Intent.ModelNames[0] != "AG958" {
		t.Errorf("expected intent passed through, got %+v", d.Intent)
	}
}

func TestRoute_KnownSeriesIsNotUnknown(t *testing.T) {
	cat := stubSeries{known: map[string]bool{"958": true}, all: []string{"958"}}
	intent := model.Intent{SeriesKeys: []string{"958"}, Shape: model.ShapeSeries}
	d := Route("958 系列有哪些型號？", intent, stubActivator{}, cat)
	if d.Kind != DecisionDirect {
		t.Errorf("expected direct for known series, got %s", d.Kind)
	}
}
