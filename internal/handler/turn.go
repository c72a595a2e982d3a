// Package handler implements the HTTP surface over dialogue.Engine.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/laptop-mgfd/dialogue-core/internal/dialogue"
	"github.com/laptop-mgfd/dialogue-core/internal/model"
)

// TurnHandler handles the turn-taking endpoints: free-text queries and
// funnel answers, both routed through a single dialogue.Engine.
type TurnHandler struct {
	engine *dialogue.Engine
}

// NewTurnHandler creates a TurnHandler over engine.
func NewTurnHandler(engine *dialogue.Engine) *TurnHandler {
	return &TurnHandler{engine: engine}
}

// Query handles POST /v1/turn: a free-text user turn.
func (h *TurnHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req model.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}

	reply := h.engine.HandleTurn(r.Context(), dialogue.TurnInput{Kind: dialogue.TurnQuery, Query: req.Query})
	WriteJSON(w, http.StatusOK, reply)
}

// FunnelAnswer handles POST /v1/funnel/answer: a single-step funnel reply.
func (h *TurnHandler) FunnelAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.FunnelAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.SessionID == "" || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id and option_id are required")
		return
	}

	reply := h.engine.HandleTurn(r.Context(), dialogue.TurnInput{
		Kind:      dialogue.TurnFunnelAnswer,
		SessionID: req.SessionID,
		OptionID:  req.OptionID,
	})
	WriteJSON(w, http.StatusOK, reply)
}

// FunnelBatchAnswer handles POST /v1/funnel/batch-answer: a one-shot
// funnel reply submitting every answer at once.
func (h *TurnHandler) FunnelBatchAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.FunnelBatchAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id is required")
		return
	}

	reply := h.engine.HandleTurn(r.Context(), dialogue.TurnInput{
		Kind:      dialogue.TurnFunnelBatchAnswer,
		SessionID: req.SessionID,
		Answers:   req.Answers,
	})
	WriteJSON(w, http.StatusOK, reply)
}

// StartFunnelBatch handles POST /v1/funnel/start-batch: open a funnel in
// one-shot mode and return every question at once.
func (h *TurnHandler) StartFunnelBatch(w http.ResponseWriter, r *http.Request) {
	var req model.StartFunnelBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}

	reply := h.engine.StartFunnelBatch(req.Query)
	WriteJSON(w, http.StatusOK, reply)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, model.ErrorResponse{Error: errCode, Message: message})
}
