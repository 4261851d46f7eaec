package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.AttemptStore = (*AttemptStore)(nil)

// AttemptStore is an in-memory implementation of app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
	now      func() time.Time
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*domain.Attempt),
		now:      time.Now,
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, quizID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.attempts[id] = &domain.Attempt{
		ID:        id,
		QuizID:    quizID,
		Answers:   make(map[string]string),
		Status:    domain.AttemptInProgress,
		StartedAt: s.now().UTC(),
	}
	return id, nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return copyAttempt(*attempt), nil
}

func (s *AttemptStore) SetAnswer(_ context.Context, attemptID, questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Terminal() {
		return domain.ErrAttemptLocked
	}
	attempt.Answers[questionID] = value
	attempt.Revision++
	return nil
}

func (s *AttemptStore) MarkTerminal(_ context.Context, attemptID string, revision int64, result domain.AttemptResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return false, domain.ErrAttemptNotFound
	}
	if attempt.Terminal() || attempt.Revision != revision {
		return false, nil
	}
	result.Results = append([]domain.QuestionOutcome(nil), result.Results...)
	attempt.Status = domain.AttemptSubmitted
	attempt.Result = &result
	return true, nil
}

func copyAttempt(a domain.Attempt) domain.Attempt {
	answers := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	if a.Result != nil {
		result := *a.Result
		result.Results = append([]domain.QuestionOutcome(nil), result.Results...)
		a.Result = &result
	}
	return a
}
