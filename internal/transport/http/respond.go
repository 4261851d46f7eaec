package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-attempt-service/internal/domain"
)

const completedMessage = "this attempt has already been completed"

type errResp struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errResp) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errResp{Error: verr.Reason, Field: verr.Field}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errResp{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errResp{Error: err.Error()}
	case errors.Is(err, domain.ErrAttemptLocked), errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusConflict, errResp{Error: completedMessage}
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, errResp{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errResp{Error: "internal error"}
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}
