package domain

import "time"

// QuestionType is the closed set of question kinds a quiz can hold.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "mcq"
	QuestionShortAnswer    QuestionType = "short"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	return t == QuestionMultipleChoice || t == QuestionShortAnswer
}

// Quiz is an authored quiz. Questions are kept in their stable display order.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds,omitempty"`
	Published        bool       `json:"isPublished"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Questions        []Question `json:"questions,omitempty"`
}

// Question models a single quiz question including its hidden answer.
// For multiple choice the correct answer is the stringified zero-based index
// into Options; for short answer it is the expected text.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Prompt        string       `json:"prompt"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
	Order         int          `json:"order"`
}

// QuestionWithoutAnswer is the only question shape handed to test-takers
// before submission. It has no answer field.
type QuestionWithoutAnswer struct {
	ID      string       `json:"id"`
	QuizID  string       `json:"quizId"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Order   int          `json:"order"`
}

// QuizWithoutAnswers is the quiz as seen by a test-taker.
type QuizWithoutAnswers struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description,omitempty"`
	TimeLimitSeconds int                     `json:"timeLimitSeconds,omitempty"`
	Questions        []QuestionWithoutAnswer `json:"questions"`
}

// WithoutAnswer projects q into its answer-free shape.
func (q Question) WithoutAnswer() QuestionWithoutAnswer {
	var options []string
	if len(q.Options) > 0 {
		options = append([]string(nil), q.Options...)
	}
	return QuestionWithoutAnswer{
		ID:      q.ID,
		QuizID:  q.QuizID,
		Prompt:  q.Prompt,
		Type:    q.Type,
		Options: options,
		Order:   q.Order,
	}
}

// WithoutAnswers projects the quiz and every question into answer-free shapes.
func (q Quiz) WithoutAnswers() QuizWithoutAnswers {
	questions := make([]QuestionWithoutAnswer, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, question.WithoutAnswer())
	}
	return QuizWithoutAnswers{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Questions:        questions,
	}
}

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Attempt is one test-taker's run through a quiz.
type Attempt struct {
	ID        string            `json:"id"`
	QuizID    string            `json:"quizId"`
	Answers   map[string]string `json:"answers"`
	Status    AttemptStatus     `json:"status"`
	StartedAt time.Time         `json:"startedAt"`
	Result    *AttemptResult    `json:"result,omitempty"`
	// Revision counts accepted answer writes. Submission only lands if it is
	// unchanged since the answers were read.
	Revision int64 `json:"-"`
}

// Terminal reports whether the attempt has been submitted.
func (a Attempt) Terminal() bool {
	return a.Status == AttemptSubmitted
}

// AttemptStart is returned when an attempt begins.
type AttemptStart struct {
	AttemptID string             `json:"attemptId"`
	Quiz      QuizWithoutAnswers `json:"quiz"`
}

// QuestionOutcome is the per-question breakdown of a scored attempt.
// Answers are in display form: option text for multiple choice when the
// index resolves, the raw string otherwise.
type QuestionOutcome struct {
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// AttemptResult is produced once at submission and never changes afterwards.
type AttemptResult struct {
	AttemptID      string            `json:"attemptId"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"totalQuestions"`
	Results        []QuestionOutcome `json:"results"`
	SubmittedAt    time.Time         `json:"submittedAt"`
}

// EventType classifies anti-cheat signals reported by clients.
type EventType string

const (
	EventBlur  EventType = "blur"
	EventPaste EventType = "paste"
	EventFocus EventType = "focus"
	EventCopy  EventType = "copy"
	EventCut   EventType = "cut"
)

// EventTypes lists every known event type in a stable order.
var EventTypes = []EventType{EventBlur, EventPaste, EventFocus, EventCopy, EventCut}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AntiCheatEvent is an append-only client signal. QuestionID is empty for
// attempt-scoped events.
type AntiCheatEvent struct {
	AttemptID  string    `json:"attemptId"`
	QuestionID string    `json:"questionId,omitempty"`
	Type       EventType `json:"eventType"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    string    `json:"value,omitempty"`
}

// Tally counts events by type. It is derived from the log, never stored.
type Tally map[EventType]int

// NewTally returns a tally with every known type present at zero.
func NewTally() Tally {
	t := make(Tally, len(EventTypes))
	for _, typ := range EventTypes {
		t[typ] = 0
	}
	return t
}

// Count returns the count for typ, zero when unseen.
func (t Tally) Count(typ EventType) int {
	return t[typ]
}
