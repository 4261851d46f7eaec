package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/metrics"
)

// ResubmitPolicy decides what a second submit of the same attempt returns.
type ResubmitPolicy string

const (
	// ResubmitReplay returns the stored result on every repeated submit.
	ResubmitReplay ResubmitPolicy = "replay"
	// ResubmitReject fails every repeated submit with domain.ErrAlreadySubmitted.
	ResubmitReject ResubmitPolicy = "reject"
)

// ParseResubmitPolicy maps a config value to a policy; empty means replay.
func ParseResubmitPolicy(raw string) (ResubmitPolicy, error) {
	switch ResubmitPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ResubmitReplay:
		return ResubmitReplay, nil
	case ResubmitReject:
		return ResubmitReject, nil
	default:
		return "", fmt.Errorf("unknown resubmit policy %q", raw)
	}
}

// AttemptOptions tunes an AttemptService. Zero values are usable.
type AttemptOptions struct {
	Resubmit     ResubmitPolicy
	StoreTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Clock        func() time.Time
}

// AttemptService runs the attempt lifecycle: start, log answers, submit and
// score, plus the anti-cheat log around it.
type AttemptService struct {
	quizzes  QuestionStore
	attempts AttemptStore
	events   EventLog

	resubmit ResubmitPolicy
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	locks    attemptLocks
	watchers *tallyHub
}

func NewAttemptService(quizzes QuestionStore, attempts AttemptStore, events EventLog, opts AttemptOptions) *AttemptService {
	if opts.Resubmit == "" {
		opts.Resubmit = ResubmitReplay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AttemptService{
		quizzes:  quizzes,
		attempts: attempts,
		events:   events,
		resubmit: opts.Resubmit,
		timeout:  opts.StoreTimeout,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Clock,
		watchers: newTallyHub(),
	}
}

// StartAttempt creates an in-progress attempt for a quiz with at least one
// question and returns the quiz without any answers.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID string) (domain.AttemptStart, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	quiz, err := s.quizzes.GetQuizWithoutAnswers(ctx, quizID)
	if err != nil {
		return domain.AttemptStart{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.AttemptStart{}, domain.ErrQuizNotFound
	}

	attemptID, err := s.attempts.CreateAttempt(ctx, quizID)
	if err != nil {
		return domain.AttemptStart{}, fmt.Errorf("create attempt: %w", err)
	}

	s.metrics.AttemptStarted()
	s.log.Info("attempt started",
		zap.String("attemptId", attemptID),
		zap.String("quizId", quizID),
		zap.Int("questions", len(quiz.Questions)),
	)
	return domain.AttemptStart{AttemptID: attemptID, Quiz: quiz}, nil
}

// LogAnswer stores the answer for one question, replacing any earlier value.
// Unknown attempts fail with domain.ErrAttemptNotFound; submitted attempts
// fail with domain.ErrAttemptLocked.
func (s *AttemptService) LogAnswer(ctx context.Context, attemptID, questionID, value string) error {
	if questionID == "" {
		return &domain.ValidationError{Field: "questionId", Reason: "is required"}
	}

	unlock := s.locks.lock(attemptID)
	defer unlock()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.attempts.SetAnswer(ctx, attemptID, questionID, value); err != nil {
		return err
	}
	s.metrics.AnswerLogged()
	s.log.Debug("answer logged", zap.String("attemptId", attemptID), zap.String("questionId", questionID))
	return nil
}

// maxSubmitTries bounds rescoring when answers keep landing from other
// instances between the read and the swap.
const maxSubmitTries = 8

// SubmitAttempt scores the attempt and marks it submitted. Scoring happens at
// most once per attempt; repeated calls follow the configured ResubmitPolicy.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	for try := 0; try < maxSubmitTries; try++ {
		attempt, err := s.attempts.GetAttempt(ctx, attemptID)
		if err != nil {
			return domain.AttemptResult{}, err
		}
		if attempt.Terminal() {
			return s.resubmitted(attempt)
		}

		quiz, err := s.quizzes.GetQuizWithQuestions(ctx, attempt.QuizID)
		if err != nil {
			return domain.AttemptResult{}, err
		}
		if len(quiz.Questions) == 0 {
			return domain.AttemptResult{}, domain.ErrQuizNotFound
		}

		result := scoreAttempt(attempt.ID, quiz.Questions, attempt.Answers)
		result.SubmittedAt = s.now().UTC()

		swapped, err := s.attempts.MarkTerminal(ctx, attempt.ID, attempt.Revision, result)
		if err != nil {
			return domain.AttemptResult{}, fmt.Errorf("mark attempt submitted: %w", err)
		}
		if !swapped {
			// Another instance submitted or wrote an answer since the read.
			s.log.Debug("submit lost race, rereading", zap.String("attemptId", attemptID), zap.Int("try", try+1))
			continue
		}

		s.submitted(attempt, result)
		return result, nil
	}
	return domain.AttemptResult{}, fmt.Errorf("attempt %s kept changing during submit: %w", attemptID, domain.ErrInvalidState)
}

func (s *AttemptService) submitted(attempt domain.Attempt, result domain.AttemptResult) {
	s.metrics.Submitted(metrics.OutcomeScored)
	s.log.Info("attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.String("quizId", attempt.QuizID),
		zap.Int("score", result.Score),
		zap.Int("total", result.TotalQuestions),
	)
}

// Result returns the stored result of a submitted attempt.
func (s *AttemptService) Result(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if !attempt.Terminal() || attempt.Result == nil {
		return domain.AttemptResult{}, fmt.Errorf("attempt %s is still in progress: %w", attemptID, domain.ErrInvalidState)
	}
	return cloneResult(*attempt.Result), nil
}

func (s *AttemptService) resubmitted(attempt domain.Attempt) (domain.AttemptResult, error) {
	if s.resubmit == ResubmitReject || attempt.Result == nil {
		s.metrics.Submitted(metrics.OutcomeRejected)
		return domain.AttemptResult{}, domain.ErrAlreadySubmitted
	}
	s.metrics.Submitted(metrics.OutcomeReplayed)
	return cloneResult(*attempt.Result), nil
}

func (s *AttemptService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func cloneResult(r domain.AttemptResult) domain.AttemptResult {
	r.Results = append([]domain.QuestionOutcome(nil), r.Results...)
	return r
}

const lockStripes = 64

// attemptLocks serializes work per attempt ID using a fixed set of stripes.
type attemptLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *attemptLocks) lock(attemptID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(attemptID))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
