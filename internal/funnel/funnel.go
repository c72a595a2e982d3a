// Package funnel implements the MGFD session lifecycle: activation
// decision, question dispatch, answer recording, and completion
// detection (spec.md §4.F).
package funnel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/google/uuid"

	"github.com/laptop-mgfd/dialogue-core/internal/catalogconfig"
	"github.com/laptop-mgfd/dialogue-core/internal/core"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// Controller owns every Session for the process lifetime. Sessions expire
// opportunistically (checked on each operation) and via a background
// sweep driven by go-cache's janitor.
type Controller struct {
	cfg catalogconfig.FunnelConfig

	sessions *cache.Cache
	issued   *cache.Cache // session_id -> struct{}, outlives sessions so get() can tell expired from unknown
	locks    sync.Map     // session_id -> *sync.Mutex, serializes per-session answer calls
}

// New builds a Controller. ttl bounds session lifetime; cleanupInterval is
// the janitor sweep period. issued entries live twice as long as ttl, so a
// session_id that falls out of sessions but is still in issued is reported
// as expired rather than unknown.
func New(cfg catalogconfig.FunnelConfig, ttl, cleanupInterval time.Duration) *Controller {
	return &Controller{
		cfg:      cfg,
		sessions: cache.New(ttl, cleanupInterval),
		issued:   cache.New(2*ttl, cleanupInterval),
	}
}

// Event is the tagged result of F.answer / F.answer_batch.
type Event struct {
	Kind       EventKind
	Question   model.Question
	StepIndex  int
	TotalSteps int
	Complete   *CompleteResult
}

// EventKind distinguishes the two Event shapes.
type EventKind string

const (
	EventNextQuestion EventKind = "next_question"
	EventComplete     EventKind = "complete"
)

// CompleteResult bundles the funnel's translated output.
type CompleteResult struct {
	Preferences   map[string]string // feature_id -> option label, human-readable
	DBFilters     []model.FieldFilter
	EnhancedQuery string
}

// ShouldActivate implements should_activate(query, intent).
func (c *Controller) ShouldActivate(query string, intent model.Intent) (bool, model.Scenario) {
	lower := strings.ToLower(query)

	vague := containsAny(lower, c.cfg.TriggerKeywords.Vague)
	unknownGeneral := intent.Shape == model.ShapeUnknown && (intent.Topic == model.TopicGeneral || intent.Topic == model.TopicUnclear)
	lifestyleOnly := intent.Shape == model.ShapeUnknown && isLifestyleTopic(intent.Topic)

	if intent.Shape != model.ShapeUnknown {
		// explicit SKU or series bypasses the funnel regardless of vague words
		return false, ""
	}
	if !vague && !unknownGeneral && !lifestyleOnly {
		return false, ""
	}

	return true, c.pickScenario(lower)
}

func isLifestyleTopic(topic model.Topic) bool {
	switch topic {
	case model.TopicPortability, model.TopicGaming, model.TopicBusiness:
		return true
	default:
		return false
	}
}

func (c *Controller) pickScenario(lower string) model.Scenario {
	order := []model.Scenario{model.ScenarioGaming, model.ScenarioBusiness, model.ScenarioStudy, model.ScenarioCreation}
	for _, scenario := range order {
		if containsAny(lower, c.cfg.ScenarioKeywords[scenario]) {
			return scenario
		}
	}
	return model.ScenarioGeneral
}

// Start implements start(query) -> (session_id, Question).
func (c *Controller) Start(query string, scenario model.Scenario) (string, model.Question, error) {
	order := c.filteredOrder(scenario)
	if len(order) == 0 {
		return "", model.Question{}, core.New(core.KindConfigInvalid, fmt.Sprintf("no funnel questions configured for scenario %q", scenario))
	}

	now := time.Now()
	session := &model.Session{
		SessionID:     uuid.NewString(),
		OriginalQuery: query,
		Scenario:      scenario,
		QuestionOrder: order,
		StepIndex:     0,
		Answers:       make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.sessions.Set(session.SessionID, session, cache.DefaultExpiration)
	c.issued.Set(session.SessionID, struct{}{}, cache.DefaultExpiration)

	return session.SessionID, c.cfg.Features[order[0]], nil
}

// TotalSteps returns the number of questions in the session's order, or 0
// if the session is unknown or expired.
func (c *Controller) TotalSteps(sessionID string) int {
	sess, ok := c.get(sessionID)
	if !ok {
		return 0
	}
	return len(sess.QuestionOrder)
}

// StartBatch implements start_batch(query) -> QuestionList.
func (c *Controller) StartBatch(query string, scenario model.Scenario) (string, []model.Question, error) {
	sessionID, _, err := c.Start(query, scenario)
	if err != nil {
		return "", nil, err
	}
	sess, _ := c.get(sessionID)
	questions := make([]model.Question, 0, len(sess.QuestionOrder))
	for _, fid := range sess.QuestionOrder {
		questions = append(questions, c.cfg.Features[fid])
	}
	return sessionID, questions, nil
}

func (c *Controller) filteredOrder(scenario model.Scenario) []string {
	var out []string
	for _, fid := range c.cfg.Priorities[scenario] {
		if _, ok := c.cfg.Features[fid]; ok {
			out = append(out, fid)
		}
	}
	return out
}

// Answer implements answer(session_id, option_id) -> Event.
func (c *Controller) Answer(sessionID, optionID string) (Event, error) {
	mu := c.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, ok := c.get(sessionID)
	if !ok {
		return Event{}, c.missingSessionError(sessionID)
	}

	if sess.Done() {
		return c.completeEvent(sess), nil
	}

	featureID := sess.QuestionOrder[sess.StepIndex]
	question := c.cfg.Features[featureID]

	opt, ok := findOption(question, optionID)
	if !ok {
		return Event{Kind: EventNextQuestion, Question: question, StepIndex: sess.StepIndex, TotalSteps: len(sess.QuestionOrder)},
			core.New(core.KindInvalidAnswer, fmt.Sprintf("unknown option %q for question %q", optionID, featureID))
	}

	sess.Answers[featureID] = opt.OptionID
	sess.StepIndex++
	sess.UpdatedAt = time.Now()
	c.sessions.Set(sessionID, sess, cache.DefaultExpiration)

	if sess.Done() {
		return c.completeEvent(sess), nil
	}
	next := c.cfg.Features[sess.QuestionOrder[sess.StepIndex]]
	return Event{Kind: EventNextQuestion, Question: next, StepIndex: sess.StepIndex, TotalSteps: len(sess.QuestionOrder)}, nil
}

// AnswerBatch implements answer_batch(session_id, {feature_id: option_id}).
func (c *Controller) AnswerBatch(sessionID string, answers map[string]string) (Event, error) {
	mu := c.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, ok := c.get(sessionID)
	if !ok {
		return Event{}, c.missingSessionError(sessionID)
	}

	for _, featureID := range sess.QuestionOrder {
		optionID, given := answers[featureID]
		if !given {
			continue
		}
		question := c.cfg.Features[featureID]
		if opt, ok := findOption(question, optionID); ok {
			sess.Answers[featureID] = opt.OptionID
		}
	}
	sess.StepIndex = len(sess.Answers)
	sess.UpdatedAt = time.Now()
	c.sessions.Set(sessionID, sess, cache.DefaultExpiration)

	return c.completeEvent(sess), nil
}

func (c *Controller) completeEvent(sess *model.Session) Event {
	preferences := make(map[string]string, len(sess.Answers))
	var filters []model.FieldFilter
	var phrases []string

	for _, featureID := range sess.QuestionOrder {
		optionID, ok := sess.Answers[featureID]
		if !ok {
			continue
		}
		question := c.cfg.Features[featureID]
		opt, ok := findOption(question, optionID)
		if !ok {
			continue
		}
		preferences[featureID] = opt.Label
		filters = append(filters, opt.Filters...)
		phrases = append(phrases, opt.Label)
	}

	enhanced := sess.OriginalQuery
	if len(phrases) > 0 {
		enhanced = sess.OriginalQuery + " (" + strings.Join(phrases, ", ") + ")"
	}

	return Event{
		Kind: EventComplete,
		Complete: &CompleteResult{
			Preferences:   preferences,
			DBFilters:     filters,
			EnhancedQuery: enhanced,
		},
	}
}

// get returns the session by id. go-cache evicts on TTL, opportunistically
// on Get and periodically via its janitor.
func (c *Controller) get(sessionID string) (*model.Session, bool) {
	v, ok := c.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*model.Session), true
}

// missingSessionError distinguishes a session that expired from one that
// was never issued: issued outlives sessions, so a session_id present
// there but absent from sessions has expired rather than never existed.
func (c *Controller) missingSessionError(sessionID string) error {
	if _, ok := c.issued.Get(sessionID); ok {
		return core.New(core.KindSessionExpired, "session expired")
	}
	return core.New(core.KindSessionNotFound, "session not found")
}

func (c *Controller) lockFor(sessionID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func findOption(q model.Question, optionID string) (model.Option, bool) {
	for _, o := range q.Options {
		if o.OptionID == optionID {
			return o, true
		}
	}
	return model.Option{}, false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
