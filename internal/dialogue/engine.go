// Package dialogue implements handle_turn (spec.md §6), the single
// logical entry point wiring the intent router, funnel controller,
// retrieval planner, prompt builder/parser, and response shaper into one
// per-turn pipeline.
package dialogue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/entity"
	"github.com/laptop-mgfd/dialogue-core/internal/funnel"
	"github.com/laptop-mgfd/dialogue-core/internal/llmclient"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
	"github.com/laptop-mgfd/dialogue-core/internal/prompt"
	"github.com/laptop-mgfd/dialogue-core/internal/respond"
	"github.com/laptop-mgfd/dialogue-core/internal/retrieval"
	"github.com/laptop-mgfd/dialogue-core/internal/router"
)

// SeriesCatalog is the subset of Catalog the engine needs directly (for
// routing and the list-all/unknown-series static replies). Satisfied by
// *catalog.Catalog; kept narrow so the engine is testable without a
// database-backed catalog.
type SeriesCatalog interface {
	HasSeries(key string) bool
	Series() []string
	Names() []string
}

// Engine holds every component handle_turn wires together. It is built
// once at startup from already-constructed components and is safe for
// concurrent use by multiple turns; the only mutable state it touches
// belongs to the funnel controller, which serializes per-session.
type Engine struct {
	catalog   SeriesCatalog
	extractor *entity.Extractor
	funnelCtl *funnel.Controller
	planner   *retrieval.Planner
	llm       *llmclient.Client
	builder   *prompt.Builder

	maxCellWidth int
	llmTimeout   time.Duration
}

// Config bundles the dependencies needed to construct an Engine.
type Config struct {
	Catalog      SeriesCatalog
	Extractor    *entity.Extractor
	Funnel       *funnel.Controller
	Planner      *retrieval.Planner
	LLM          *llmclient.Client
	Builder      *prompt.Builder
	MaxCellWidth int
	LLMTimeout   time.Duration
}

// New builds an Engine from Config.
func New(cfg Config) *Engine {
	width := cfg.MaxCellWidth
	if width <= 0 {
		width = 50
	}
	return &Engine{
		catalog:      cfg.Catalog,
		extractor:    cfg.Extractor,
		funnelCtl:    cfg.Funnel,
		planner:      cfg.Planner,
		llm:          cfg.LLM,
		builder:      cfg.Builder,
		maxCellWidth: width,
		llmTimeout:   cfg.LLMTimeout,
	}
}

// TurnKind is the closed set of handle_turn input shapes (spec.md §6).
type TurnKind string

const (
	TurnQuery               TurnKind = "query"
	TurnFunnelAnswer        TurnKind = "funnel_answer"
	TurnFunnelBatchAnswer   TurnKind = "funnel_batch_answer"
)

// TurnInput is the tagged union handle_turn accepts.
type TurnInput struct {
	Kind      TurnKind
	Query     string
	SessionID string
	OptionID  string
	Answers   map[string]string
}

// HandleTurn implements handle_turn(input) -> Reply. It never panics and
// never returns a bare Go error: every failure path is absorbed into a
// Reply, per spec.md §7's overarching principle.
func (e *Engine) HandleTurn(ctx context.Context, in TurnInput) model.Reply {
	switch in.Kind {
	case TurnFunnelAnswer:
		return e.handleFunnelAnswer(ctx, in.SessionID, in.OptionID)
	case TurnFunnelBatchAnswer:
		return e.handleFunnelBatchAnswer(ctx, in.SessionID, in.Answers)
	default:
		return e.handleQuery(ctx, in.Query)
	}
}

func (e *Engine) handleQuery(ctx context.Context, query string) model.Reply {
	intent := e.extractor.Extract(query)
	decision := router.Route(query, intent, e.funnelCtl, e.catalog)

	slog.Info("routing decision", "kind", decision.Kind, "topic", intent.Topic, "shape", intent.Shape)

	switch decision.Kind {
	case router.DecisionListAll:
		return directReply(listAllResponse(e.catalog))

	case router.DecisionFunnelTrigger:
		return e.startFunnel(query, decision.Scenario)

	case router.DecisionUnknownSeries:
		return directReply(unknownSeriesResponse(decision.UnknownTokens, router.SortedSeries(e.catalog)))

	default:
		return e.answerDirectly(ctx, query, intent, nil, query, nil)
	}
}

func (e *Engine) handleFunnelAnswer(ctx context.Context, sessionID, optionID string) model.Reply {
	event, err := e.funnelCtl.Answer(sessionID, optionID)
	if err != nil {
		return e.handleFunnelEventError(ctx, err, event)
	}
	return e.funnelEventReply(ctx, sessionID, event)
}

func (e *Engine) handleFunnelBatchAnswer(ctx context.Context, sessionID string, answers map[string]string) model.Reply {
	event, err := e.funnelCtl.AnswerBatch(sessionID, answers)
	if err != nil {
		return e.handleFunnelEventError(ctx, err, event)
	}
	return e.funnelEventReply(ctx, sessionID, event)
}

// handleFunnelEventError maps F's typed errors per §7: InvalidAnswer
// re-emits the current question (the reply carries no validation message);
// Session* errors surface directly for the transport to handle.
func (e *Engine) handleFunnelEventError(ctx context.Context, err error, event funnel.Event) model.Reply {
	kind, ok := core.KindOf(err)
	if !ok {
		return errorReply(core.KindInvalidAnswer, err.Error())
	}

	switch kind {
	case core.KindInvalidAnswer:
		slog.Info("funnel lifecycle", "event", "invalid_answer", "reason", err.Error())
		return model.Reply{
			Kind: model.ReplyFunnelQuestion,
			FunnelQuestion: &model.FunnelQuestionReply{
				Question:   event.Question,
				StepIndex:  event.StepIndex,
				TotalSteps: event.TotalSteps,
			},
		}
	case core.KindSessionNotFound, core.KindSessionExpired:
		slog.Info("funnel lifecycle", "event", "expired_or_missing")
		return errorReply(kind, err.Error())
	default:
		return errorReply(kind, err.Error())
	}
}

func (e *Engine) funnelEventReply(ctx context.Context, sessionID string, event funnel.Event) model.Reply {
	if event.Kind == funnel.EventNextQuestion {
		slog.Info("funnel lifecycle", "event", "next_question")
		return model.Reply{
			Kind: model.ReplyFunnelQuestion,
			FunnelQuestion: &model.FunnelQuestionReply{
				SessionID:  sessionID,
				Question:   event.Question,
				StepIndex:  event.StepIndex,
				TotalSteps: event.TotalSteps,
			},
		}
	}

	slog.Info("funnel lifecycle", "event", "complete")
	complete := event.Complete
	intent := model.Intent{Shape: model.ShapeUnknown, Topic: model.TopicGeneral}
	reply := e.answerDirectly(ctx, complete.EnhancedQuery, intent, complete.DBFilters, complete.EnhancedQuery, complete.Preferences)

	if reply.Kind != model.ReplyDirect {
		// answerDirectly returns an Error reply only for an error kind that
		// respond.RecoveryForError does not handle; pass it through as is.
		return reply
	}

	return model.Reply{
		Kind: model.ReplyFunnelComplete,
		FunnelComplete: &model.FunnelCompleteReply{
			SessionID:   sessionID,
			Preferences: complete.Preferences,
			Reply:       *reply.Direct,
		},
	}
}

func (e *Engine) startFunnel(query string, scenario model.Scenario) model.Reply {
	sessionID, question, err := e.funnelCtl.Start(query, scenario)
	if err != nil {
		kind, _ := core.KindOf(err)
		return errorReply(kind, err.Error())
	}
	slog.Info("funnel lifecycle", "event", "start", "scenario", scenario, "session_id", sessionID)

	return model.Reply{
		Kind: model.ReplyFunnelQuestion,
		FunnelQuestion: &model.FunnelQuestionReply{
			SessionID:  sessionID,
			StepIndex:  0,
			TotalSteps: e.funnelCtl.TotalSteps(sessionID),
			Question:   question,
		},
	}
}

// StartFunnelBatch opens a one-shot funnel for the given query, bypassing
// intent routing. The transport calls this directly when it operates in
// batch mode rather than relying on the router's funnel-trigger decision,
// which always opens the stepwise form.
func (e *Engine) StartFunnelBatch(query string) model.Reply {
	intent := e.extractor.Extract(query)
	_, scenario := e.funnelCtl.ShouldActivate(query, intent)
	if scenario == "" {
		scenario = model.ScenarioGeneral
	}

	sessionID, questions, err := e.funnelCtl.StartBatch(query, scenario)
	if err != nil {
		kind, _ := core.KindOf(err)
		return errorReply(kind, err.Error())
	}
	slog.Info("funnel lifecycle", "event", "start_batch", "scenario", scenario, "session_id", sessionID)

	return model.Reply{
		Kind: model.ReplyFunnelBatch,
		FunnelBatch: &model.FunnelBatchReply{
			SessionID: sessionID,
			Questions: questions,
		},
	}
}

// answerDirectly runs H -> I -> J for an intent that already resolved to
// a concrete target set, whether from a direct query or a completed
// funnel. preferences, non-nil only for a completed funnel, is passed to
// the prompt builder. Any downstream failure is absorbed into a Direct reply.
func (e *Engine) answerDirectly(ctx context.Context, query string, intent model.Intent, filters []model.FieldFilter, enhancedQuery string, preferences map[string]string) model.Reply {
	result, err := e.planner.Plan(ctx, retrieval.Input{
		Intent:        intent,
		DBFilters:     filters,
		EnhancedQuery: enhancedQuery,
	})
	if err != nil {
		return e.recover(err, intent.Topic, nil, nil)
	}

	if err := retrieval.CheckAvailability(intent.Topic, result.Rows); err != nil {
		return e.recover(err, intent.Topic, result.Rows, result.TargetNames)
	}

	if len(result.Rows) == 0 {
		return directReply(respond.Fallback(intent.Topic, result.Rows, result.TargetNames))
	}

	return e.callLLM(ctx, query, intent, result, preferences)
}

func (e *Engine) callLLM(ctx context.Context, query string, intent model.Intent, result retrieval.Result, preferences map[string]string) model.Reply {
	llmCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()

	system, user := e.builder.Build(query, intent, result.Rows, result.TargetNames, preferences)

	llmResult, err := e.llm.Complete(llmCtx, system, user)
	if err != nil {
		slog.Warn("llm call failed", "error", err)
		return e.recover(err, intent.Topic, result.Rows, result.TargetNames)
	}
	slog.Info("llm call succeeded", "latency", llmResult.Latency)

	parsed, err := prompt.Parse(llmResult.Text, result.TargetNames, e.maxCellWidth)
	if err != nil {
		slog.Warn("llm reply failed to parse, falling back to catalog data", "error", err)
		return e.recover(err, intent.Topic, result.Rows, result.TargetNames)
	}

	slog.Info("response shaping", "decision", "llm_parsed")
	return directReply(respond.Shape(parsed))
}

// recover absorbs any downstream error into a Direct reply per §7's
// recovery table. It never returns an unhandled error to the caller.
func (e *Engine) recover(err error, topic model.Topic, rows []model.SKU, targetNames []string) model.Reply {
	if resp, ok := respond.RecoveryForError(err, topic, rows, targetNames); ok {
		slog.Info("response shaping", "decision", "fallback", "kind", errKind(err))
		return directReply(resp)
	}
	kind, _ := core.KindOf(err)
	return errorReply(kind, err.Error())
}

func errKind(err error) core.ErrKind {
	kind, _ := core.KindOf(err)
	return kind
}

func directReply(resp model.Response) model.Reply {
	return model.Reply{Kind: model.ReplyDirect, Direct: &resp}
}

func errorReply(kind core.ErrKind, message string) model.Reply {
	return model.Reply{
		Kind:  model.ReplyError,
		Error: &model.ErrorReply{Kind: string(kind), Message: message},
	}
}

// listAllResponse builds the static catalog enumeration for router's
// list-all decision (spec.md §4.G, step 1).
func listAllResponse(cat SeriesCatalog) model.Response {
	names := append([]string(nil), cat.Names()...)
	series := append([]string(nil), cat.Series()...)
	sort.Strings(names)
	sort.Strings(series)

	return model.Response{
		Summary: "Here are all known models and series.",
		Table: []model.Row{
			{"feature": "models", "value": joinOrNA(names)},
			{"feature": "series", "value": joinOrNA(series)},
		},
	}
}

// unknownSeriesResponse builds the "known-unknown" helpful error naming
// the valid series set (spec.md §4.G, step 3).
func unknownSeriesResponse(unknownTokens, validSeries []string) model.Response {
	return model.Response{
		Summary: "I don't recognize " + joinOrNA(unknownTokens) + " as a known series. Valid series are: " + joinOrNA(validSeries) + ".",
		Table:   []model.Row{},
	}
}

func joinOrNA(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}
