package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type attemptHandler struct {
	service *app.AttemptService
	log     *zap.Logger
}

type startRequest struct {
	QuizID string `json:"quizId"`
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type eventRequest struct {
	QuestionID string           `json:"questionId"`
	Type       domain.EventType `json:"eventType"`
	Timestamp  *time.Time       `json:"timestamp"`
	Value      string           `json:"value"`
}

func (e eventRequest) toEvent(attemptID string) domain.AntiCheatEvent {
	event := domain.AntiCheatEvent{
		AttemptID:  attemptID,
		QuestionID: e.QuestionID,
		Type:       e.Type,
		Payload:    e.Value,
	}
	if e.Timestamp != nil {
		event.Timestamp = e.Timestamp.UTC()
	}
	return event
}

type tallyResponse struct {
	AttemptID string       `json:"attemptId"`
	Counts    domain.Tally `json:"counts"`
}

func (h *attemptHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.QuizID == "" {
		writeServiceError(w, &domain.ValidationError{Field: "quizId", Reason: "is required"})
		return
	}
	started, err := h.service.StartAttempt(r.Context(), req.QuizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

func (h *attemptHandler) logAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.service.LogAnswer(r.Context(), chi.URLParam(r, "attemptID"), req.QuestionID, req.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *attemptHandler) submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SubmitAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *attemptHandler) result(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// recordEvent always answers 202: anti-cheat reporting never fails the taker.
func (h *attemptHandler) recordEvent(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.Warn("dropping undecodable anti-cheat event", zap.String("attemptId", attemptID), zap.Error(err))
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.service.RecordEvent(r.Context(), req.toEvent(attemptID))
	w.WriteHeader(http.StatusAccepted)
}

func (h *attemptHandler) events(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), chi.URLParam(r, "attemptID"), r.URL.Query().Get("questionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *attemptHandler) tally(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	counts, err := h.service.Tally(r.Context(), attemptID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tallyResponse{AttemptID: attemptID, Counts: counts})
}
