package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// RecordEvent appends an anti-cheat event. It never fails the caller:
// malformed events and persistence errors are logged and dropped.
func (s *AttemptService) RecordEvent(ctx context.Context, event domain.AntiCheatEvent) {
	if event.AttemptID == "" || !event.Type.Valid() {
		s.log.Warn("dropping malformed anti-cheat event",
			zap.String("attemptId", event.AttemptID),
			zap.String("type", string(event.Type)),
		)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.events.Append(ctx, event); err != nil {
		s.metrics.EventDropped()
		s.log.Warn("anti-cheat event not persisted",
			zap.String("attemptId", event.AttemptID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventRecorded(string(event.Type))

	if s.watchers.watched(event.AttemptID) {
		if tally, err := s.tally(ctx, event.AttemptID); err == nil {
			s.watchers.broadcast(event.AttemptID, tally)
		}
	}
}

// Tally counts the attempt's events by type. Unseen types are zero.
func (s *AttemptService) Tally(ctx context.Context, attemptID string) (domain.Tally, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.tally(ctx, attemptID)
}

func (s *AttemptService) tally(ctx context.Context, attemptID string) (domain.Tally, error) {
	events, err := s.events.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return TallyEvents(attemptID, events), nil
}

// Events lists the attempt's events, optionally narrowed to one question.
func (s *AttemptService) Events(ctx context.Context, attemptID, questionID string) ([]domain.AntiCheatEvent, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	events, err := s.events.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AntiCheatEvent, 0, len(events))
	for _, e := range events {
		if e.AttemptID != attemptID {
			continue
		}
		if questionID != "" && e.QuestionID != questionID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Watch returns a channel of tally snapshots for the attempt: the current
// tally first, then one per recorded event. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *AttemptService) Watch(ctx context.Context, attemptID string) (<-chan domain.Tally, func(), error) {
	initial, err := s.Tally(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.watchers.subscribe(attemptID, initial)
	return ch, cancel, nil
}

// TallyEvents counts events belonging to attemptID by type.
func TallyEvents(attemptID string, events []domain.AntiCheatEvent) domain.Tally {
	tally := domain.NewTally()
	for _, e := range events {
		if e.AttemptID != attemptID {
			continue
		}
		tally[e.Type]++
	}
	return tally
}

type tallyHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Tally]struct{}
}

func newTallyHub() *tallyHub {
	return &tallyHub{subscribers: make(map[string]map[chan domain.Tally]struct{})}
}

func (h *tallyHub) subscribe(attemptID string, initial domain.Tally) (<-chan domain.Tally, func()) {
	ch := make(chan domain.Tally, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[attemptID]
	if !ok {
		subs = make(map[chan domain.Tally]struct{})
		h.subscribers[attemptID] = subs
	}
	subs[ch] = struct{}{}
	ch <- initial
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[attemptID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, attemptID)
		}
	}
	return ch, cancel
}

func (h *tallyHub) watched(attemptID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[attemptID]) > 0
}

func (h *tallyHub) broadcast(attemptID string, tally domain.Tally) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[attemptID] {
		snapshot := make(domain.Tally, len(tally))
		for k, v := range tally {
			snapshot[k] = v
		}
		select {
		case ch <- snapshot:
		default:
			// Slow watcher: drop the oldest snapshot so the newest gets through.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
