package app

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// QuestionStore loads quizzes for attempts. GetQuizWithQuestions is the only
// read that exposes correct answers and is used solely for scoring.
type QuestionStore interface {
	GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuizWithoutAnswers(ctx context.Context, quizID string) (domain.QuizWithoutAnswers, error)
}

// QuizCatalog adds authoring writes on top of QuestionStore.
type QuizCatalog interface {
	QuestionStore
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// UpdateQuiz persists quiz metadata; questions are left untouched.
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
	// ReplaceQuestions swaps the quiz's ordered question list in one step.
	ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error
}

// AttemptStore persists attempts (in-memory, Redis, Postgres).
type AttemptStore interface {
	CreateAttempt(ctx context.Context, quizID string) (string, error)
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	// SetAnswer upserts one answer. It returns domain.ErrAttemptLocked for
	// submitted attempts and domain.ErrAttemptNotFound for unknown ones.
	SetAnswer(ctx context.Context, attemptID, questionID, value string) error
	// MarkTerminal flips the attempt to submitted and stores result, atomically.
	// It reports false when the attempt was already submitted or its revision
	// no longer matches the one result was scored from.
	MarkTerminal(ctx context.Context, attemptID string, revision int64, result domain.AttemptResult) (bool, error)
}

// EventLog is the append-only anti-cheat log.
type EventLog interface {
	Append(ctx context.Context, event domain.AntiCheatEvent) error
	ListByAttempt(ctx context.Context, attemptID string) ([]domain.AntiCheatEvent, error)
}
