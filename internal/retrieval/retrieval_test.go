package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

type stubCatalog struct {
	byName   map[string]model.SKU
	bySeries map[string][]model.SKU
	all      []model.SKU
}

func (s stubCatalog) ByName(names []string) []model.SKU {
	var out []model.SKU
	for _, n := range names {
		if sku, ok := s.byName[n]; ok {
			out = append(out, sku)
		}
	}
	return out
}

func (s stubCatalog) BySeries(keys []string) []model.SKU {
	var out []model.SKU
	for _, k := range keys {
		out = append(out, s.bySeries[k]...)
	}
	return out
}

func (s stubCatalog) All() []model.SKU { return s.all }

type stubVectors struct {
	hits []Ranked
	err  error
}

func (s stubVectors) Search(ctx context.Context, query string, k int) ([]Ranked, error) {
	return s.hits, s.err
}

func sku(name, series string, fields map[string]string) model.SKU {
	return model.SKU{ModelName: name, SeriesKey: series, Fields: fields}
}

func TestPlan_SpecificModel(t *testing.T) {
	cat := stubCatalog{byName: map[string]model.SKU{
		"AG958":  sku("AG958", "958", map[string]string{"cpu": "i7"}),
		"APX958": sku("APX958", "958", map[string]string{"cpu": "i5"}),
	}}
	p := New(Config{Catalog: cat, Vectors: stubVectors{}, VectorK: 5, Timeout: time.Second})

	res, err := p.Plan(context.Background(), Input{Intent: model.Intent{
		ModelNames: []string{"AG958", "APX958"},
		Shape:      model.ShapeSpecificModel,
		Topic:      model.TopicComparison,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.TargetNames) != 2 || res.TargetNames[0] != "AG958" {
		t.Errorf("expected target_names [AG958 APX958], got %v", res.TargetNames)
	}
}

func TestPlan_SeriesShape(t *testing.T) {
	cat := stubCatalog{bySeries: map[string][]model.SKU{
		"958": {sku("AG958", "958", nil), sku("APX958", "958", nil)},
	}}
	p := New(Config{Catalog: cat, Vectors: stubVectors{}, VectorK: 5, Timeout: time.Second})

	res, err := p.Plan(context.Background(), Input{Intent: model.Intent{
		SeriesKeys: []string{"958"},
		Shape:      model.ShapeSeries,
		Topic:      model.TopicGeneral,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
}

func TestPlan_FunnelCompletionFiltersAll(t *testing.T) {
	cat := stubCatalog{all: []model.SKU{
		sku("AG958", "958", map[string]string{"cpu_tier": "8"}),
		sku("APX958", "958", map[string]string{"cpu_tier": "3"}),
	}}
	p := New(Config{Catalog: cat, Vectors: stubVectors{}, VectorK: 5, Timeout: time.Second})

	res, err := p.Plan(context.Background(), Input{
		Intent: model.Intent{Shape: model.ShapeUnknown, Topic: model.TopicGeneral},
		DBFilters: []model.FieldFilter{
			{Field: "cpu_tier", Op: model.FilterGreaterEq, Numeric: 7},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].ModelName != "AG958" {
		t.Errorf("expected only AG958 to match filter, got %v", res.Rows)
	}
}

func TestPlan_FunnelCompletionEmptyFilterFallsBackToDefault(t *testing.T) {
	cat := stubCatalog{
		all: []model.SKU{sku("AG958", "958", map[string]string{"cpu_tier": "1"})},
		bySeries: map[string][]model.SKU{
			"958": {sku("AG958", "958", nil)},
		},
	}
	p := New(Config{Catalog: cat, Vectors: stubVectors{}, DefaultSeries: []string{"958"}, VectorK: 5, Timeout: time.Second})

	res, err := p.Plan(context.Background(), Input{
		Intent: model.Intent{Shape: model.ShapeUnknown, Topic: model.TopicGeneral},
		DBFilters: []model.FieldFilter{
			{Field: "cpu_tier", Op: model.FilterGreaterEq, Numeric: 99},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].ModelName != "AG958" {
		t.Errorf("expected fallback to default series, got %v", res.Rows)
	}
}

func TestPlan_EnrichesAndReordersOnGeneralTopic(t *testing.T) {
	cat := stubCatalog{bySeries: map[string][]model.SKU{
		"958": {sku("AG958", "958", nil), sku("APX958", "958", nil)},
	}}
	vectors := stubVectors{hits: []Ranked{{ModelName: "APX958", Rank: 1}, {ModelName: "AG958", Rank: 2}}}
	p := New(Config{Catalog: cat, Vectors: vectors, VectorK: 5, Timeout: time.Second})

	res, err := p.Plan(context.Background(), Input{Intent: model.Intent{
		SeriesKeys: []string{"958"},
		Shape:      model.ShapeSeries,
		Topic:      model.TopicGeneral,
	}, EnhancedQuery: "which is better"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TargetNames[0] != "APX958" {
		t.Errorf("expected vector-ranked APX958 first, got %v", res.TargetNames)
	}
}

func TestCheckAvailability_AllEmpty(t *testing.T) {
	rows := []model.SKU{
		sku("AG958", "958", map[string]string{"cpu": ""}),
		sku("APX958", "958", map[string]string{"cpu": ""}),
	}
	err := CheckAvailability(model.TopicCPU, rows)
	if err == nil {
		t.Fatal("expected DataUnavailable error")
	}
	kind, ok := core.KindOf(err)
	if !ok || kind != core.KindDataUnavailable {
		t.Errorf("expected KindDataUnavailable, got %v", kind)
	}
	data, ok := core.DataOf(err)
	if !ok {
		t.Fatal("expected structured data on the error")
	}
	info := data.(DataUnavailableInfo)
	if info.Field != "cpu" || len(info.Names) != 2 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestCheckAvailability_SomeDataPresent(t *testing.T) {
	rows := []model.SKU{
		sku("AG958", "958", map[string]string{"cpu": "i7"}),
	}
	if err := CheckAvailability(model.TopicCPU, rows); err != nil {
		t.Errorf("expected no error when data is present, got %v", err)
	}
}

func TestCheckAvailability_DisplayTopicGatesOnLCDField(t *testing.T) {
	rows := []model.SKU{
		sku("AG958", "958", map[string]string{"lcd": "14in 2.8K"}),
	}
	if err := CheckAvailability(model.TopicDisplay, rows); err != nil {
		t.Errorf("expected no error when lcd data is present, got %v", err)
	}

	empty := []model.SKU{
		sku("AG958", "958", map[string]string{"lcd": ""}),
	}
	err := CheckAvailability(model.TopicDisplay, empty)
	if err == nil {
		t.Fatal("expected DataUnavailable error")
	}
	data, ok := core.DataOf(err)
	if !ok {
		t.Fatal("expected structured data on the error")
	}
	if info := data.(DataUnavailableInfo); info.Field != "lcd" {
		t.Errorf("expected availability check to gate on the lcd field, got %q", info.Field)
	}
}

type slowVectors struct{}

func (slowVectors) Search(ctx context.Context, query string, k int) ([]Ranked, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPlan_InternalTimeoutReturnsRetrievalTimeout(t *testing.T) {
	cat := stubCatalog{bySeries: map[string][]model.SKU{
		"958": {sku("AG958", "958", nil), sku("APX958", "958", nil)},
	}}
	p := New(Config{Catalog: cat, Vectors: slowVectors{}, VectorK: 5, Timeout: time.Millisecond})

	_, err := p.Plan(context.Background(), Input{Intent: model.Intent{
		SeriesKeys: []string{"958"},
		Shape:      model.ShapeSeries,
		Topic:      model.TopicGeneral,
	}, EnhancedQuery: "which is better"})
	if err == nil {
		t.Fatal("expected a retrieval timeout error")
	}
	kind, ok := core.KindOf(err)
	if !ok || kind != core.KindRetrievalTimeout {
		t.Errorf("expected KindRetrievalTimeout, got %v", kind)
	}
}
