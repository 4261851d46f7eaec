package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.EventLog = (*EventLog)(nil)

// EventLog keeps anti-cheat events per attempt in insertion order.
type EventLog struct {
	mu     sync.RWMutex
	events map[string][]domain.AntiCheatEvent
}

func NewEventLog() *EventLog {
	return &EventLog{events: make(map[string][]domain.AntiCheatEvent)}
}

func (l *EventLog) Append(_ context.Context, event domain.AntiCheatEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[event.AttemptID] = append(l.events[event.AttemptID], event)
	return nil
}

func (l *EventLog) ListByAttempt(_ context.Context, attemptID string) ([]domain.AntiCheatEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.AntiCheatEvent(nil), l.events[attemptID]...), nil
}
