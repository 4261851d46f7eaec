package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// QuizDraft is the author's input for a new quiz.
type QuizDraft struct {
	Title            string `json:"title" yaml:"title"`
	Description      string `json:"description" yaml:"description"`
	TimeLimitSeconds int    `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
	Published        bool   `json:"isPublished" yaml:"isPublished"`
}

// QuizPatch edits an existing quiz. Only title and description can change.
type QuizPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// QuestionDraft is the author's input for a new question.
type QuestionDraft struct {
	Prompt        string              `json:"prompt" yaml:"prompt"`
	Type          domain.QuestionType `json:"type" yaml:"type"`
	Options       []string            `json:"options" yaml:"options"`
	CorrectAnswer string              `json:"correctAnswer" yaml:"correctAnswer"`
}

// QuestionPatch edits an existing question; nil fields are left alone.
type QuestionPatch struct {
	Prompt        *string              `json:"prompt"`
	Type          *domain.QuestionType `json:"type"`
	Options       *[]string            `json:"options"`
	CorrectAnswer *string              `json:"correctAnswer"`
}

// QuizService covers quiz and question authoring.
type QuizService struct {
	catalog QuizCatalog
	log     *zap.Logger
	now     func() time.Time
	newID   func() string

	// mu serializes read-modify-write edits of question lists.
	mu sync.Mutex
}

func NewQuizService(catalog QuizCatalog, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		catalog: catalog,
		log:     logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// CreateQuiz validates and stores a quiz with no questions.
func (s *QuizService) CreateQuiz(ctx context.Context, draft QuizDraft) (domain.Quiz, error) {
	now := s.now().UTC()
	quiz := domain.Quiz{
		ID:               s.newID(),
		Title:            strings.TrimSpace(draft.Title),
		Description:      draft.Description,
		TimeLimitSeconds: draft.TimeLimitSeconds,
		Published:        draft.Published,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := quiz.ValidateMetadata(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.catalog.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	s.log.Info("quiz created", zap.String("quizId", quiz.ID), zap.String("title", quiz.Title))
	return quiz, nil
}

// ImportQuiz stores a complete quiz with its questions, assigning fresh IDs.
func (s *QuizService) ImportQuiz(ctx context.Context, draft QuizDraft, questions []QuestionDraft) (domain.Quiz, error) {
	quiz, err := s.CreateQuiz(ctx, draft)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(questions) == 0 {
		return quiz, nil
	}
	added, err := s.AddQuestions(ctx, quiz.ID, questions)
	if err != nil {
		if rbErr := s.catalog.DeleteQuiz(ctx, quiz.ID); rbErr != nil {
			s.log.Warn("import rollback failed, quiz left without questions",
				zap.String("quizId", quiz.ID),
				zap.NamedError("cause", err),
				zap.Error(rbErr),
			)
		}
		return domain.Quiz{}, err
	}
	quiz.Questions = added
	return quiz, nil
}

// GetQuiz returns the author's view of a quiz, answers included.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.catalog.GetQuizWithQuestions(ctx, quizID)
}

// ListQuizzes returns quiz metadata without questions.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.catalog.ListQuizzes(ctx)
}

// UpdateQuiz applies a title/description patch.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID string, patch QuizPatch) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, err := s.catalog.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Quiz{}, &domain.ValidationError{Field: "title", Reason: "is required"}
		}
		quiz.Title = title
	}
	if patch.Description != nil {
		quiz.Description = *patch.Description
	}
	quiz.UpdatedAt = s.now().UTC()
	if err := quiz.ValidateMetadata(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.catalog.UpdateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, nil
}

// DeleteQuiz removes a quiz and its questions.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := s.catalog.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.log.Info("quiz deleted", zap.String("quizId", quizID))
	return nil
}

// AddQuestions appends questions in the given order.
func (s *QuizService) AddQuestions(ctx context.Context, quizID string, drafts []QuestionDraft) ([]domain.Question, error) {
	if len(drafts) == 0 {
		return nil, &domain.ValidationError{Field: "questions", Reason: "at least one question is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, err := s.catalog.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions)+len(drafts) > domain.MaxQuestionsPerQuiz {
		return nil, &domain.ValidationError{
			Field:  "questions",
			Reason: fmt.Sprintf("a quiz holds at most %d questions", domain.MaxQuestionsPerQuiz),
		}
	}

	added := make([]domain.Question, 0, len(drafts))
	for i, draft := range drafts {
		question := domain.Question{
			ID:            s.newID(),
			QuizID:        quizID,
			Prompt:        strings.TrimSpace(draft.Prompt),
			Type:          draft.Type,
			Options:       draft.Options,
			CorrectAnswer: draft.CorrectAnswer,
			Order:         len(quiz.Questions) + i,
		}
		if err := question.Validate(); err != nil {
			return nil, err
		}
		added = append(added, question)
	}

	questions := append(append([]domain.Question(nil), quiz.Questions...), added...)
	if err := s.catalog.ReplaceQuestions(ctx, quizID, questions); err != nil {
		return nil, fmt.Errorf("save questions: %w", err)
	}
	s.log.Info("questions added", zap.String("quizId", quizID), zap.Int("count", len(added)))
	return added, nil
}

// UpdateQuestion applies a patch and re-validates the question.
func (s *QuizService) UpdateQuestion(ctx context.Context, quizID, questionID string, patch QuestionPatch) (domain.Question, error) {
	return s.editQuestion(ctx, quizID, questionID, func(q domain.Question) (domain.Question, error) {
		if patch.Prompt != nil {
			prompt := strings.TrimSpace(*patch.Prompt)
			if prompt == "" {
				return domain.Question{}, &domain.ValidationError{Field: "prompt", Reason: "is required"}
			}
			q.Prompt = prompt
		}
		if patch.Type != nil {
			q.Type = *patch.Type
		}
		if patch.Options != nil {
			q.Options = append([]string(nil), (*patch.Options)...)
		}
		if patch.CorrectAnswer != nil {
			q.CorrectAnswer = *patch.CorrectAnswer
		}
		if q.Type == domain.QuestionShortAnswer {
			q.Options = nil
		}
		return q, q.Validate()
	})
}

// RemoveOption deletes one multiple-choice option and keeps the correct
// answer pointing at a valid option.
func (s *QuizService) RemoveOption(ctx context.Context, quizID, questionID string, index int) (domain.Question, error) {
	return s.editQuestion(ctx, quizID, questionID, func(q domain.Question) (domain.Question, error) {
		return q.RemoveOption(index)
	})
}

// DeleteQuestion removes a question and renumbers the rest.
func (s *QuizService) DeleteQuestion(ctx context.Context, quizID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, err := s.catalog.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return err
	}
	remaining := make([]domain.Question, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			continue
		}
		q.Order = len(remaining)
		remaining = append(remaining, q)
	}
	if len(remaining) == len(quiz.Questions) {
		return domain.ErrQuestionNotFound
	}
	return s.catalog.ReplaceQuestions(ctx, quizID, remaining)
}

func (s *QuizService) editQuestion(ctx context.Context, quizID, questionID string, edit func(domain.Question) (domain.Question, error)) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quiz, err := s.catalog.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.Question{}, err
	}
	questions := append([]domain.Question(nil), quiz.Questions...)
	for i := range questions {
		if questions[i].ID != questionID {
			continue
		}
		updated, err := edit(questions[i])
		if err != nil {
			return domain.Question{}, err
		}
		questions[i] = updated
		if err := s.catalog.ReplaceQuestions(ctx, quizID, questions); err != nil {
			return domain.Question{}, fmt.Errorf("save questions: %w", err)
		}
		return updated, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
