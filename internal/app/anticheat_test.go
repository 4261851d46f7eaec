package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/metrics"
)

func TestTallyCountsPerAttempt(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.ResubmitReplay)

	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", Type: domain.EventBlur})
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", QuestionID: "q1", Type: domain.EventPaste, Payload: "Paris"})
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", Type: domain.EventBlur})
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "y", Type: domain.EventBlur})

	tally, err := service.Tally(ctx, "x")
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if tally.Count(domain.EventBlur) != 2 || tally.Count(domain.EventPaste) != 1 {
		t.Fatalf("expected blur=2 paste=1, got %v", tally)
	}
	for _, typ := range []domain.EventType{domain.EventFocus, domain.EventCopy, domain.EventCut} {
		count, present := tally[typ]
		if !present || count != 0 {
			t.Fatalf("expected %s present at zero, got %d (present=%v)", typ, count, present)
		}
	}
}

func TestTallyEventsExcludesOtherAttempts(t *testing.T) {
	events := []domain.AntiCheatEvent{
		{AttemptID: "x", Type: domain.EventPaste},
		{AttemptID: "z", Type: domain.EventPaste},
		{AttemptID: "x", Type: domain.EventBlur},
	}
	tally := app.TallyEvents("x", events)
	if tally.Count(domain.EventPaste) != 1 || tally.Count(domain.EventBlur) != 1 {
		t.Fatalf("unexpected tally %v", tally)
	}
}

func TestEventsFilterByQuestion(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.ResubmitReplay)

	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", QuestionID: "q1", Type: domain.EventPaste})
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", QuestionID: "q2", Type: domain.EventCopy})
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", Type: domain.EventBlur})

	all, _ := service.Events(ctx, "x", "")
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	q1, _ := service.Events(ctx, "x", "q1")
	if len(q1) != 1 || q1[0].Type != domain.EventPaste {
		t.Fatalf("expected only the q1 paste, got %+v", q1)
	}
	if q1[0].Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be filled in")
	}
}

func TestRecordEventSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	service := app.NewAttemptService(
		memory.NewQuizStore(sampleQuiz()),
		memory.NewAttemptStore(),
		failingLog{},
		app.AttemptOptions{Metrics: m},
	)

	start, err := service.StartAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: start.AttemptID, Type: domain.EventBlur})

	if got := testutil.ToFloat64(m.AntiCheatFailures); got != 1 {
		t.Fatalf("expected one dropped event, got %v", got)
	}
	if err := service.LogAnswer(ctx, start.AttemptID, "q-mcq", "0"); err != nil {
		t.Fatalf("answer path must not be affected: %v", err)
	}
	if _, err := service.SubmitAttempt(ctx, start.AttemptID); err != nil {
		t.Fatalf("submit path must not be affected: %v", err)
	}
}

func TestRecordEventDropsUnknownType(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.ResubmitReplay)

	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", Type: "screenshot"})
	service.RecordEvent(ctx, domain.AntiCheatEvent{Type: domain.EventBlur})

	events, _ := service.Events(ctx, "x", "")
	if len(events) != 0 {
		t.Fatalf("expected malformed events to be dropped, got %+v", events)
	}
}

func TestWatchReceivesTallyUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.ResubmitReplay)

	ch, cancel, err := service.Watch(ctx, "x")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Count(domain.EventBlur) != 0 {
		t.Fatalf("expected empty initial tally, got %v", initial)
	}

	service.RecordEvent(ctx, domain.AntiCheatEvent{AttemptID: "x", Type: domain.EventBlur})

	select {
	case update := <-ch:
		if update.Count(domain.EventBlur) != 1 {
			t.Fatalf("expected blur=1, got %v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for tally update")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
}

type failingLog struct{}

func (failingLog) Append(context.Context, domain.AntiCheatEvent) error {
	return errors.New("disk full")
}

func (failingLog) ListByAttempt(context.Context, string) ([]domain.AntiCheatEvent, error) {
	return nil, errors.New("disk full")
}
