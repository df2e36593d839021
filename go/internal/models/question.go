package models

import (
	"github.com/google/uuid"
)

// QuestionType defines the type of a quiz question.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypePoll           QuestionType = "poll"
)

// Graded reports whether answers to this question type earn points.
// Polls collect opinions and are never graded.
func (t QuestionType) Graded() bool {
	return t != QuestionTypePoll
}

// Question represents a single quiz question. The correct-answer fields are
// populated per type: CorrectOptions for multiple choice, CorrectBool for
// true/false, Keywords for short answer. Polls carry none.
type Question struct {
	ID               uuid.UUID    `json:"id"`
	QuizID           uuid.UUID    `json:"quiz_id"`
	OrderIndex       int          `json:"order_index"`
	Type             QuestionType `json:"type"`
	Text             string       `json:"text"`
	Options          []string     `json:"options,omitempty"`
	CorrectOptions   []int        `json:"correct_options,omitempty"`
	CorrectBool      *bool        `json:"correct_bool,omitempty"`
	Keywords         []string     `json:"keywords,omitempty"`
	Explanation      string       `json:"explanation,omitempty"`
	Points           int          `json:"points"`
	TimeLimitSeconds int          `json:"time_limit_seconds"`
}

// Sanitized returns a copy with the correct-answer fields stripped, safe to
// send to participants while the question is still answerable.
func (q Question) Sanitized() Question {
	q.CorrectOptions = nil
	q.CorrectBool = nil
	q.Keywords = nil
	q.Explanation = ""
	return q
}

// Quiz represents the quiz a session runs.
type Quiz struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions,omitempty"`
}
