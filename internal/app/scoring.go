package app

import (
	"strconv"
	"strings"

	"quiz-attempt-service/internal/domain"
)

// scoreAttempt grades every question in order. Unanswered questions count as
// present with an empty answer.
func scoreAttempt(attemptID string, questions []domain.Question, answers map[string]string) domain.AttemptResult {
	result := domain.AttemptResult{
		AttemptID:      attemptID,
		TotalQuestions: len(questions),
		Results:        make([]domain.QuestionOutcome, 0, len(questions)),
	}
	for _, question := range questions {
		outcome := gradeQuestion(question, answers[question.ID])
		if outcome.IsCorrect {
			result.Score++
		}
		result.Results = append(result.Results, outcome)
	}
	return result
}

func gradeQuestion(question domain.Question, answer string) domain.QuestionOutcome {
	outcome := domain.QuestionOutcome{
		QuestionID:    question.ID,
		Question:      question.Prompt,
		UserAnswer:    answer,
		CorrectAnswer: question.CorrectAnswer,
	}
	switch question.Type {
	case domain.QuestionMultipleChoice:
		gradeMultipleChoice(question, answer, &outcome)
	case domain.QuestionShortAnswer:
		outcome.IsCorrect = domain.NormalizeText(answer) == domain.NormalizeText(question.CorrectAnswer)
	}
	return outcome
}

// gradeMultipleChoice compares indices as integers and resolves both sides to
// option text when the index addresses an option.
func gradeMultipleChoice(question domain.Question, answer string, outcome *domain.QuestionOutcome) {
	userIdx, userErr := strconv.Atoi(strings.TrimSpace(answer))
	correctIdx, correctErr := strconv.Atoi(strings.TrimSpace(question.CorrectAnswer))
	outcome.IsCorrect = userErr == nil && correctErr == nil && userIdx == correctIdx

	if idx, ok := question.OptionIndex(answer); ok {
		outcome.UserAnswer = question.Options[idx]
	}
	if idx, ok := question.CorrectIndex(); ok {
		outcome.CorrectAnswer = question.Options[idx]
	}
}
