package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz, or its question set, could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrAttemptNotFound is returned for unknown attempt IDs.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)

	// ErrInvalidState is the parent of errors caused by the attempt lifecycle.
	ErrInvalidState = errors.New("invalid attempt state")
	// ErrAttemptLocked is returned when an answer is logged for a submitted attempt.
	ErrAttemptLocked = fmt.Errorf("attempt is already submitted: %w", ErrInvalidState)
	// ErrAlreadySubmitted is returned for repeated submissions under the reject policy.
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes malformed input at the store boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
