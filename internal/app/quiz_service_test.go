package app_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func TestCreateQuizAndAddQuestions(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)

	quiz, err := service.CreateQuiz(ctx, app.QuizDraft{Title: "  Capitals ", TimeLimitSeconds: 300, Published: true})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if quiz.ID == "" || quiz.Title != "Capitals" || quiz.CreatedAt.IsZero() {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}

	added, err := service.AddQuestions(ctx, quiz.ID, []app.QuestionDraft{
		{Prompt: "Capital of France?", Type: domain.QuestionMultipleChoice, Options: []string{"Paris", "London"}, CorrectAnswer: "0"},
		{Prompt: "Capital of Italy?", Type: domain.QuestionShortAnswer, CorrectAnswer: "Rome"},
	})
	if err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if len(added) != 2 || added[1].Order != 1 || added[0].QuizID != quiz.ID {
		t.Fatalf("unexpected questions: %+v", added)
	}

	stored, err := service.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(stored.Questions) != 2 {
		t.Fatalf("expected 2 stored questions, got %d", len(stored.Questions))
	}
}

func TestCreateQuizValidation(t *testing.T) {
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	_, err := service.CreateQuiz(context.Background(), app.QuizDraft{Title: "x", TimeLimitSeconds: 30})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddQuestionsEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Big"})

	drafts := make([]app.QuestionDraft, domain.MaxQuestionsPerQuiz)
	for i := range drafts {
		drafts[i] = app.QuestionDraft{Prompt: "p", Type: domain.QuestionShortAnswer, CorrectAnswer: "a"}
	}
	if _, err := service.AddQuestions(ctx, quiz.ID, drafts); err != nil {
		t.Fatalf("add questions: %v", err)
	}
	_, err := service.AddQuestions(ctx, quiz.ID, drafts[:1])
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error past the limit, got %v", err)
	}
}

func TestAddQuestionsRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Batch"})

	_, err := service.AddQuestions(ctx, quiz.ID, []app.QuestionDraft{
		{Prompt: "ok", Type: domain.QuestionShortAnswer, CorrectAnswer: "a"},
		{Prompt: "bad", Type: domain.QuestionMultipleChoice, Options: []string{"a", "A"}, CorrectAnswer: "0"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := service.GetQuiz(ctx, quiz.ID)
	if len(stored.Questions) != 0 {
		t.Fatalf("invalid batch must not be partially stored")
	}
}

func TestUpdateAndDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Edit"})
	added, _ := service.AddQuestions(ctx, quiz.ID, []app.QuestionDraft{
		{Prompt: "one", Type: domain.QuestionMultipleChoice, Options: []string{"a", "b", "c"}, CorrectAnswer: "2"},
		{Prompt: "two", Type: domain.QuestionShortAnswer, CorrectAnswer: "x"},
	})

	short := domain.QuestionShortAnswer
	answer := "c"
	updated, err := service.UpdateQuestion(ctx, quiz.ID, added[0].ID, app.QuestionPatch{Type: &short, CorrectAnswer: &answer})
	if err != nil {
		t.Fatalf("update question: %v", err)
	}
	if updated.Type != domain.QuestionShortAnswer || len(updated.Options) != 0 {
		t.Fatalf("expected short answer without options, got %+v", updated)
	}

	bad := "7"
	if _, err := service.UpdateQuestion(ctx, quiz.ID, added[1].ID, app.QuestionPatch{CorrectAnswer: &bad, Type: ptr(domain.QuestionMultipleChoice)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := service.DeleteQuestion(ctx, quiz.ID, added[0].ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}
	stored, _ := service.GetQuiz(ctx, quiz.ID)
	if len(stored.Questions) != 1 || stored.Questions[0].ID != added[1].ID || stored.Questions[0].Order != 0 {
		t.Fatalf("expected renumbered remaining question, got %+v", stored.Questions)
	}
	if err := service.DeleteQuestion(ctx, quiz.ID, "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestRemoveOptionKeepsAnswerValid(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Options"})
	added, _ := service.AddQuestions(ctx, quiz.ID, []app.QuestionDraft{
		{Prompt: "Capital of Germany?", Type: domain.QuestionMultipleChoice, Options: []string{"Paris", "London", "Berlin"}, CorrectAnswer: "2"},
	})

	updated, err := service.RemoveOption(ctx, quiz.ID, added[0].ID, 0)
	if err != nil {
		t.Fatalf("remove option: %v", err)
	}
	idx, ok := updated.CorrectIndex()
	if !ok || updated.Options[idx] != "Berlin" {
		t.Fatalf("expected answer to still be Berlin, got %+v", updated)
	}
}

func TestUpdateQuizOnlyTouchesTitleAndDescription(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Old", TimeLimitSeconds: 200, Published: true})

	title := "New"
	desc := "fresh"
	updated, err := service.UpdateQuiz(ctx, quiz.ID, app.QuizPatch{Title: &title, Description: &desc})
	if err != nil {
		t.Fatalf("update quiz: %v", err)
	}
	if updated.Title != "New" || updated.Description != "fresh" || updated.TimeLimitSeconds != 200 || !updated.Published {
		t.Fatalf("unexpected quiz: %+v", updated)
	}

	if _, err := service.UpdateQuiz(ctx, "missing", app.QuizPatch{Title: &title}); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportQuiz(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()
	service := app.NewQuizService(store, nil)

	quiz, err := service.ImportQuiz(ctx, app.QuizDraft{Title: "Imported"}, []app.QuestionDraft{
		{Prompt: "Capital of Spain?", Type: domain.QuestionShortAnswer, CorrectAnswer: "Madrid"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("expected one question, got %d", len(quiz.Questions))
	}

	_, err = service.ImportQuiz(ctx, app.QuizDraft{Title: "Broken"}, []app.QuestionDraft{{Prompt: "", Type: domain.QuestionShortAnswer}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	list, _ := store.ListQuizzes(ctx)
	if len(list) != 1 {
		t.Fatalf("failed import must not leave a quiz behind, got %d", len(list))
	}
}

func TestImportQuizLogsFailedRollback(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	catalog := &brokenCatalog{QuizStore: memory.NewQuizStore()}
	service := app.NewQuizService(catalog, zap.New(core))

	_, err := service.ImportQuiz(ctx, app.QuizDraft{Title: "Orphan"}, []app.QuestionDraft{
		{Prompt: "Capital of Spain?", Type: domain.QuestionShortAnswer, CorrectAnswer: "Madrid"},
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected save error, got %v", err)
	}

	entries := logs.FilterMessage("import rollback failed, quiz left without questions").All()
	if len(entries) != 1 {
		t.Fatalf("expected one rollback warning, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["quizId"] == "" || fields["error"] != errStoreDown.Error() {
		t.Fatalf("unexpected warning fields: %v", fields)
	}
}

func TestBlankPatchFieldsAreRejected(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), nil)
	quiz, _ := service.CreateQuiz(ctx, app.QuizDraft{Title: "Keep"})
	added, _ := service.AddQuestions(ctx, quiz.ID, []app.QuestionDraft{
		{Prompt: "Capital of Spain?", Type: domain.QuestionShortAnswer, CorrectAnswer: "Madrid"},
	})

	var verr *domain.ValidationError
	_, err := service.UpdateQuiz(ctx, quiz.ID, app.QuizPatch{Title: ptr("   ")})
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
	_, err = service.UpdateQuestion(ctx, quiz.ID, added[0].ID, app.QuestionPatch{Prompt: ptr("\t ")})
	if !errors.As(err, &verr) || verr.Field != "prompt" {
		t.Fatalf("expected prompt validation error, got %v", err)
	}

	stored, _ := service.GetQuiz(ctx, quiz.ID)
	if stored.Title != "Keep" || stored.Questions[0].Prompt != "Capital of Spain?" {
		t.Fatalf("rejected patch changed the quiz: %+v", stored)
	}
}

var errStoreDown = errors.New("store down")

// brokenCatalog accepts quiz rows but fails question writes and deletes.
type brokenCatalog struct {
	*memory.QuizStore
}

func (c *brokenCatalog) ReplaceQuestions(context.Context, string, []domain.Question) error {
	return errStoreDown
}

func (c *brokenCatalog) DeleteQuiz(context.Context, string) error {
	return errStoreDown
}

func ptr[T any](v T) *T {
	return &v
}
