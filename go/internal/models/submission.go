package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnswerSubmission records one participant's answer to one question.
// In live mode at most one exists per (participant, question); in self-paced
// mode the row is upserted until the participant's final submission.
type AnswerSubmission struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     uuid.UUID       `json:"session_id"`
	QuestionID    uuid.UUID       `json:"question_id"`
	ParticipantID uuid.UUID       `json:"participant_id"`
	Answer        json.RawMessage `json:"answer"`
	TimeTakenMs   int             `json:"time_taken_ms"`
	IsCorrect     bool            `json:"is_correct"`
	PointsEarned  int             `json:"points_earned"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// CooldownFeedback is the per-participant result shown during a cooldown
// window. Transient: it is scoped to one question's cooldown and reset when
// the next question starts.
type CooldownFeedback struct {
	IsCorrect     bool            `json:"is_correct"`
	PointsEarned  int             `json:"points_earned"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	DidNotAnswer  bool            `json:"did_not_answer,omitempty"`
}

// LeaderboardEntry is one ranked row of a session leaderboard.
type LeaderboardEntry struct {
	ParticipantID  uuid.UUID `json:"participant_id"`
	DisplayName    string    `json:"display_name"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalTimeMs    int       `json:"total_time_ms"`
	Rank           int       `json:"rank"`
}
