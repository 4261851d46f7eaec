package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MinTimeLimitSeconds  = 120
	MaxTimeLimitSeconds  = 600
	MaxQuestionsPerQuiz  = 10
	MinOptions           = 2
	MaxOptions           = 5
)

// ValidateMetadata checks the quiz fields an author controls, ignoring questions.
func (q Quiz) ValidateMetadata() error {
	title := strings.TrimSpace(q.Title)
	if title == "" {
		return invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid("title", "must be at most %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(q.Description) > MaxDescriptionLength {
		return invalid("description", "must be at most %d characters", MaxDescriptionLength)
	}
	if q.TimeLimitSeconds != 0 && (q.TimeLimitSeconds < MinTimeLimitSeconds || q.TimeLimitSeconds > MaxTimeLimitSeconds) {
		return invalid("timeLimitSeconds", "must be between %d and %d", MinTimeLimitSeconds, MaxTimeLimitSeconds)
	}
	return nil
}

// Validate checks the quiz metadata and every question.
func (q Quiz) Validate() error {
	if err := q.ValidateMetadata(); err != nil {
		return err
	}
	if len(q.Questions) > MaxQuestionsPerQuiz {
		return invalid("questions", "a quiz holds at most %d questions", MaxQuestionsPerQuiz)
	}
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the question is well formed for its type.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return invalid("prompt", "is required")
	}
	switch q.Type {
	case QuestionMultipleChoice:
		return q.validateMultipleChoice()
	case QuestionShortAnswer:
		if len(q.Options) > 0 {
			return invalid("options", "short answer questions take no options")
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return invalid("correctAnswer", "is required")
		}
		return nil
	default:
		return invalid("type", "unknown question type %q", q.Type)
	}
}

func (q Question) validateMultipleChoice() error {
	if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
		return invalid("options", "multiple choice needs %d to %d options", MinOptions, MaxOptions)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		key := NormalizeText(opt)
		if key == "" {
			return invalid("options", "option text is required")
		}
		if _, dup := seen[key]; dup {
			return invalid("options", "options must be unique")
		}
		seen[key] = struct{}{}
	}
	if _, ok := q.CorrectIndex(); !ok {
		return invalid("correctAnswer", "must be an option index between 0 and %d", len(q.Options)-1)
	}
	return nil
}

// CorrectIndex parses the stored answer as an index into Options.
func (q Question) CorrectIndex() (int, bool) {
	return q.OptionIndex(q.CorrectAnswer)
}

// OptionIndex parses raw as a base-10 index and reports whether it addresses an option.
func (q Question) OptionIndex(raw string) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 0 || idx >= len(q.Options) {
		return idx, false
	}
	return idx, true
}

// RemoveOption drops the option at index and re-points the correct answer so
// it keeps addressing the same option. Removing the correct option resets the
// answer to the first option.
func (q Question) RemoveOption(index int) (Question, error) {
	if q.Type != QuestionMultipleChoice {
		return q, invalid("options", "only multiple choice questions have options")
	}
	if index < 0 || index >= len(q.Options) {
		return q, invalid("options", "option %d does not exist", index)
	}
	if len(q.Options) <= MinOptions {
		return q, invalid("options", "multiple choice needs at least %d options", MinOptions)
	}

	out := q
	out.Options = make([]string, 0, len(q.Options)-1)
	out.Options = append(out.Options, q.Options[:index]...)
	out.Options = append(out.Options, q.Options[index+1:]...)

	correct, ok := q.CorrectIndex()
	switch {
	case !ok || correct == index:
		out.CorrectAnswer = "0"
	case correct > index:
		out.CorrectAnswer = strconv.Itoa(correct - 1)
	}
	return out, out.Validate()
}

// NormalizeText trims and case-folds s for comparisons.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
