package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type quizHandler struct {
	service *app.QuizService
}

type quizSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	TimeLimitSeconds int    `json:"timeLimitSeconds,omitempty"`
	Published        bool   `json:"isPublished"`
}

type addQuestionsRequest struct {
	Questions []app.QuestionDraft `json:"questions"`
}

func (h *quizHandler) list(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizSummary{
			ID:               q.ID,
			Title:            q.Title,
			Description:      q.Description,
			TimeLimitSeconds: q.TimeLimitSeconds,
			Published:        q.Published,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *quizHandler) create(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeServiceError(w, err)
		return
	}
	quiz, err := h.service.CreateQuiz(r.Context(), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *quizHandler) get(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *quizHandler) update(w http.ResponseWriter, r *http.Request) {
	var patch app.QuizPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, err)
		return
	}
	quiz, err := h.service.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *quizHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *quizHandler) addQuestions(w http.ResponseWriter, r *http.Request) {
	var req addQuestionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	added, err := h.service.AddQuestions(r.Context(), chi.URLParam(r, "quizID"), req.Questions)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *quizHandler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch app.QuestionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, err)
		return
	}
	question, err := h.service.UpdateQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *quizHandler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *quizHandler) removeOption(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeServiceError(w, &domain.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}
	question, err := h.service.RemoveOption(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}
