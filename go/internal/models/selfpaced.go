package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus defines a self-paced participant's progress state.
// ProgressStatusSubmitted is terminal.
type ProgressStatus string

const (
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusSubmitted  ProgressStatus = "submitted"
)

// SelfPacedProgress tracks one participant's independent walk through a
// self-paced session. Each participant carries their own current-question
// pointer; there is no shared global timer.
type SelfPacedProgress struct {
	ParticipantID        uuid.UUID      `json:"participant_id"`
	SessionID            uuid.UUID      `json:"session_id"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Status               ProgressStatus `json:"status"`
	AnsweredQuestionIDs  []uuid.UUID    `json:"answered_question_ids"`
	Score                int            `json:"score"`
	SubmittedAt          *time.Time     `json:"submitted_at,omitempty"`
	AutoSubmitted        bool           `json:"auto_submitted"`
}

// FinalResult is the terminal result of a self-paced submission. It is
// persisted at first submission and returned unchanged by any later submit
// attempt.
type FinalResult struct {
	ParticipantID       uuid.UUID `json:"participant_id"`
	FinalScore          int       `json:"final_score"`
	TotalPossiblePoints int       `json:"total_possible_points"`
	Percentage          float64   `json:"percentage"`
	CorrectCount        int       `json:"correct_count"`
	TotalQuestions      int       `json:"total_questions"`
	AutoSubmitted       bool      `json:"auto_submitted"`
	SubmittedAt         time.Time `json:"submitted_at"`
}
