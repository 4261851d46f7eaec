package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-service/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAttemptStore(newClient(mr), time.Hour)

	id, err := store.CreateAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("attempt:" + id) {
		t.Fatalf("expected attempt hash")
	}
	if mr.TTL("attempt:"+id) != time.Hour {
		t.Fatalf("expected attempt ttl, got %v", mr.TTL("attempt:"+id))
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
	if attempt.QuizID != "quiz-1" || attempt.Answers["q1"] != "1" || attempt.Terminal() || attempt.StartedAt.IsZero() {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}

	result := domain.AttemptResult{AttemptID: id, Score: 1, TotalQuestions: 1, Results: []domain.QuestionOutcome{
		{QuestionID: "q1", UserAnswer: "4", CorrectAnswer: "4", IsCorrect: true},
	}}
	if attempt.Revision != 2 {
		t.Fatalf("expected revision 2 after two writes, got %d", attempt.Revision)
	}
	swapped, err := store.MarkTerminal(ctx, id, attempt.Revision, result)
	if err != nil || !swapped {
		t.Fatalf("expected swap, got %v %v", swapped, err)
	}
	swapped, err = store.MarkTerminal(ctx, id, attempt.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || swapped {
		t.Fatalf("expected second swap to lose, got %v %v", swapped, err)
	}

	if err := store.SetAnswer(ctx, id, "q1", "0"); !errors.Is(err, domain.ErrAttemptLocked) {
		t.Fatalf("expected locked, got %v", err)
	}

	attempt, err = store.GetAttempt(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !attempt.Terminal() || attempt.Result == nil || attempt.Result.Score != 1 || len(attempt.Result.Results) != 1 {
		t.Fatalf("expected stored result, got %+v", attempt.Result)
	}
	if attempt.Answers["q1"] != "1" {
		t.Fatalf("answers changed after submit: %v", attempt.Answers)
	}
}

func TestAttemptStoreUnknownAttempt(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAttemptStore(newClient(mr), 0)

	if _, err := store.GetAttempt(ctx, "nope"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SetAnswer(ctx, "nope", "q1", "x"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if mr.Exists("attempt:nope:answers") {
		t.Fatalf("answer must not be written for unknown attempt")
	}
	if _, err := store.MarkTerminal(ctx, "nope", 0, domain.AttemptResult{}); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreMarkRejectsStaleRevision(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	// two stores on one redis stand in for two service instances
	submitter := NewAttemptStore(newClient(mr), time.Hour)
	writer := NewAttemptStore(newClient(mr), time.Hour)

	id, err := submitter.CreateAttempt(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	read, err := submitter.GetAttempt(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := writer.SetAnswer(ctx, id, "q1", "1"); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	swapped, err := submitter.MarkTerminal(ctx, id, read.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || swapped {
		t.Fatalf("expected stale revision to lose, got %v %v", swapped, err)
	}
	if got := mr.HGet("attempt:"+id, "status"); got != string(domain.AttemptInProgress) {
		t.Fatalf("expected attempt still in progress, got %q", got)
	}

	current, err := submitter.GetAttempt(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Answers["q1"] != "1" {
		t.Fatalf("expected answer from other instance, got %v", current.Answers)
	}
	swapped, err = submitter.MarkTerminal(ctx, id, current.Revision, domain.AttemptResult{AttemptID: id})
	if err != nil || !swapped {
		t.Fatalf("expected current revision to swap, got %v %v", swapped, err)
	}
}
