package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionMode defines how a session is paced.
type SessionMode string

const (
	SessionModeLive      SessionMode = "live"
	SessionModeSelfPaced SessionMode = "self_paced"
)

// SessionStatus defines the lifecycle status of a session.
// A session is terminal once it reaches SessionStatusCompleted.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "draft"
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// SessionSettings holds JSONB configuration for quiz sessions.
type SessionSettings struct {
	AutoAdvance             bool `json:"auto_advance"`
	CooldownSeconds         int  `json:"cooldown_seconds"`
	ShowFeedbackInCooldown  bool `json:"show_feedback_in_cooldown"`
	ShowResultFeedback      bool `json:"show_result_feedback"`
	ShowLeaderboard         bool `json:"show_leaderboard"`
	AllowNavigation         bool `json:"allow_navigation"`          // self-paced back navigation
	AllowReviewBeforeSubmit bool `json:"allow_review_before_submit"`
	RequireAllAnswers       bool `json:"require_all_answers"`
	ShowTimer               bool `json:"show_timer"`
	ShowFinalScore          bool `json:"show_final_score"`
}

// Session represents one quiz session lifecycle. Exactly one Session exists
// per lifecycle; RoomCode is the short code participants join with.
type Session struct {
	ID                uuid.UUID       `json:"id"`
	QuizID            uuid.UUID       `json:"quiz_id"`
	QuizTitle         string          `json:"quiz_title"`
	Mode              SessionMode     `json:"mode"`
	Status            SessionStatus   `json:"status"`
	RoomCode          string          `json:"room_code"`
	ClassID           *uuid.UUID      `json:"class_id,omitempty"`
	Deadline          *time.Time      `json:"deadline,omitempty"` // self-paced only
	Settings          SessionSettings `json:"settings"`
	CurrentQuestion   *uuid.UUID      `json:"current_question_id,omitempty"` // live: at most one open question
	QuestionExpiresAt *time.Time      `json:"question_expires_at,omitempty"` // authoritative cutoff for the open question
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	EndedAt           *time.Time      `json:"ended_at,omitempty"`
}

// Participant represents one joined participant. Identity is immutable
// after join; Token authenticates the participant's follow-up requests.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	DisplayName string    `json:"display_name"`
	StudentID   string    `json:"student_id,omitempty"`
	IsGuest     bool      `json:"is_guest"`
	Score       int       `json:"score"`
	Token       string    `json:"-"`
	JoinedAt    time.Time `json:"joined_at"`
}
