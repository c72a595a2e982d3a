// Package model defines the domain types shared across the dialogue core.
package model

import "time"

// SKU is one laptop row in the catalog.
type SKU struct {
	ModelName string
	SeriesKey string
	Fields    map[string]string // spec field name -> free-text value, "" for unknown
}

// Field returns the value of a spec field, or "" if absent.
func (s SKU) Field(name string) string {
	return s.Fields[name]
}

// Shape classifies how an Intent resolved to catalog targets.
type Shape string

const (
	ShapeSpecificModel Shape = "specific_model"
	ShapeSeries        Shape = "series"
	ShapeUnknown       Shape = "unknown"
)

// Topic is a closed tag describing what a query is about.
type Topic string

const (
	TopicCPU         Topic = "cpu"
	TopicGPU         Topic = "gpu"
	TopicMemory      Topic = "memory"
	TopicDisplay     Topic = "display"
	TopicBattery     Topic = "battery"
	TopicPortability Topic = "portability"
	TopicGaming      Topic = "gaming"
	TopicBusiness    Topic = "business"
	TopicComparison  Topic = "comparison"
	TopicGeneral     Topic = "general"
	TopicUnclear     Topic = "unclear"
)

// Intent is the result of entity + intent extraction over a free-text query.
type Intent struct {
	ModelNames []string
	SeriesKeys []string
	Topic      Topic
	Shape      Shape
}

// FilterOp is the comparison operator a funnel option's filter applies to a
// normalized numeric or string spec field.
type FilterOp string

const (
	FilterEquals    FilterOp = "equals"
	FilterIn        FilterOp = "in"
	FilterLessEq    FilterOp = "lte"
	FilterGreaterEq FilterOp = "gte"
)

// FieldFilter is a partial predicate over one SKU spec field.
type FieldFilter struct {
	Field   string
	Op      FilterOp
	Value   string   // operand for FilterEquals
	Values  []string // operand for FilterIn
	Numeric float64  // parsed numeric operand for FilterLessEq/FilterGreaterEq
}

// Option is one selectable answer to a funnel Question.
type Option struct {
	OptionID    string
	Label       string
	Description string
	Filters     []FieldFilter
}

// Question is one step of the funnel, loaded from config.
type Question struct {
	FeatureID  string
	PromptText string
	Options    []Option
}

// Scenario is the coarse use-case label chosen at funnel start.
type Scenario string

const (
	ScenarioGaming   Scenario = "gaming"
	ScenarioBusiness Scenario = "business"
	ScenarioStudy    Scenario = "study"
	ScenarioCreation Scenario = "creation"
	ScenarioGeneral  Scenario = "general"
)

// Session is the funnel's runtime state for one dialogue.
type Session struct {
	SessionID     string
	OriginalQuery string
	Scenario      Scenario
	QuestionOrder []string // feature_ids, in priority order
	StepIndex     int
	Answers       map[string]string // feature_id -> option_id
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Done reports whether every question in QuestionOrder has been answered.
func (s *Session) Done() bool {
	return s.StepIndex >= len(s.QuestionOrder)
}

// Clone returns a deep-enough copy safe to hand to callers outside the lock.
func (s *Session) Clone() *Session {
	cp := *s
	cp.QuestionOrder = append([]string(nil), s.QuestionOrder...)
	cp.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

// Row is one line of a canonical comparison table: a "feature" key plus one
// key per compared SKU, all string-valued.
type Row map[string]string

// Response is the canonical reply shape: prose summary plus an optional
// comparison table.
type Response struct {
	Summary string `json:"summary"`
	Table   []Row  `json:"table"`
}

// ReplyKind is the closed tag set for handle_turn's return value (spec.md §6).
type ReplyKind string

const (
	ReplyDirect         ReplyKind = "direct"
	ReplyFunnelStart    ReplyKind = "funnel_start"
	ReplyFunnelQuestion ReplyKind = "funnel_question"
	ReplyFunnelBatch    ReplyKind = "funnel_batch"
	ReplyFunnelComplete ReplyKind = "funnel_complete"
	ReplyError          ReplyKind = "error"
)

// FunnelStartNotice tells the transport a funnel is opening and it should
// immediately request the first question.
type FunnelStartNotice struct {
	Message string `json:"message"`
}

// FunnelQuestionReply carries the next funnel question to render.
type FunnelQuestionReply struct {
	SessionID  string   `json:"session_id"`
	StepIndex  int      `json:"step_index"`
	TotalSteps int      `json:"total_steps"`
	Question   Question `json:"question"`
}

// FunnelBatchReply carries the one-shot question list.
type FunnelBatchReply struct {
	SessionID string     `json:"session_id"`
	Questions []Question `json:"questions"`
}

// FunnelCompleteReply bundles the user's funnel selections with the final
// Direct reply produced from them.
type FunnelCompleteReply struct {
	SessionID   string            `json:"session_id"`
	Preferences map[string]string `json:"preferences"`
	Reply       Response          `json:"reply"`
}

// ErrorReply is the terminal error shape for kinds the transport must
// surface directly to the caller (session not found/expired).
type ErrorReply struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Reply is the tagged union handle_turn returns. Exactly one of the
// pointer fields matching Kind is non-nil.
type Reply struct {
	Kind           ReplyKind             `json:"kind"`
	Direct         *Response             `json:"direct,omitempty"`
	FunnelStart    *FunnelStartNotice    `json:"funnel_start,omitempty"`
	FunnelQuestion *FunnelQuestionReply  `json:"funnel_question,omitempty"`
	FunnelBatch    *FunnelBatchReply     `json:"funnel_batch,omitempty"`
	FunnelComplete *FunnelCompleteReply  `json:"funnel_complete,omitempty"`
	Error          *ErrorReply           `json:"error,omitempty"`
}

// TurnRequest is the POST /v1/turn request body: a free-text query turn.
type TurnRequest struct {
	Query string `json:"query"`
}

// FunnelAnswerRequest is the POST /v1/funnel/answer request body.
type FunnelAnswerRequest struct {
	SessionID string `json:"session_id"`
	OptionID  string `json:"option_id"`
}

// FunnelBatchAnswerRequest is the POST /v1/funnel/batch-answer request body.
type FunnelBatchAnswerRequest struct {
	SessionID string            `json:"session_id"`
	Answers   map[string]string `json:"answers"`
}

// StartFunnelBatchRequest is the POST /v1/funnel/start-batch request body.
type StartFunnelBatchRequest struct {
	Query string `json:"query"`
}

// ErrorResponse is the standard HTTP-layer error body for malformed
// requests, distinct from ErrorReply which carries a handle_turn Error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
