package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	id, err := store.CreateAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SetAnswer(ctx, id, "q1", "0"); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if err := store.SetAnswer(ctx, id, "q1", "1"); err != nil {
		t.Fatalf("overwrite answer: %v", err)
	}

	attempt, err := store.GetAttempt(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if attempt.Answers["q1"] != "1" || attempt.Terminal() {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}

	if attempt.Revision != 2 {
		t.Fatalf("expected revision 2 after two writes, got %d", attempt.Revision)
	}

	swapped, err := store.MarkTerminal(ctx, id, attempt.Revision, domain.AttemptResult{AttemptID: id, Score: 1, TotalQuestions: 1})
	if err != nil || !swapped {
		t.Fatalf("expected first mark to swap, got %v %v", swapped, err)
	}
	swapped, err = store.MarkTerminal(ctx, id, attempt.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || swapped {
		t.Fatalf("expected second mark to lose, got %v %v", swapped, err)
	}

	if err := store.SetAnswer(ctx, id, "q1", "0"); !errors.Is(err, domain.ErrAttemptLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	attempt, _ = store.GetAttempt(ctx, id)
	if attempt.Result == nil || attempt.Result.Score != 1 {
		t.Fatalf("expected stored result from first mark, got %+v", attempt.Result)
	}
}

func TestAttemptStoreUnknownAttempt(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	if err := store.SetAnswer(ctx, "nope", "q1", "x"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.MarkTerminal(ctx, "nope", 0, domain.AttemptResult{}); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreConcurrentMarkSwapsOnce(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	id, _ := store.CreateAttempt(ctx, "quiz-1")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		swaps int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkTerminal(ctx, id, 0, domain.AttemptResult{AttemptID: id})
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				mu.Lock()
				swaps++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if swaps != 1 {
		t.Fatalf("expected exactly one swap, got %d", swaps)
	}
}

func TestAttemptStoreMarkRejectsStaleRevision(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	id, _ := store.CreateAttempt(ctx, "quiz-1")

	read, _ := store.GetAttempt(ctx, id)
	if err := store.SetAnswer(ctx, id, "q1", "1"); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	swapped, err := store.MarkTerminal(ctx, id, read.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || swapped {
		t.Fatalf("expected stale revision to lose, got %v %v", swapped, err)
	}
	current, _ := store.GetAttempt(ctx, id)
	if current.Terminal() {
		t.Fatalf("attempt submitted from a stale read")
	}
	swapped, err = store.MarkTerminal(ctx, id, current.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || !swapped {
		t.Fatalf("expected current revision to swap, got %v %v", swapped, err)
	}
}

func TestEventLogListsByAttempt(t *testing.T) {
	log := NewEventLog()
	ctx := context.Background()
	_ = log.Append(ctx, domain.AntiCheatEvent{AttemptID: "a1", Type: domain.EventBlur})
	_ = log.Append(ctx, domain.AntiCheatEvent{AttemptID: "a2", Type: domain.EventPaste})
	_ = log.Append(ctx, domain.AntiCheatEvent{AttemptID: "a1", Type: domain.EventPaste})

	events, err := log.ListByAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Type != domain.EventBlur || events[1].Type != domain.EventPaste {
		t.Fatalf("unexpected events: %+v", events)
	}
}
