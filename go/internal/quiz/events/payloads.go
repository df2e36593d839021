package events

import (
	"time"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// SessionStartedPayload is the payload for a session_started event.
type SessionStartedPayload struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	TotalQuestions int       `json:"total_questions"`
}

// QuestionStartedPayload is the payload for a question_started event.
// ExpiresAt is the absolute server instant the question closes; clients
// derive their countdown from it rather than from TimeLimitSeconds.
type QuestionStartedPayload struct {
	Question        models.Question `json:"question"`
	QuestionNumber  int             `json:"question_number"`
	TotalQuestions  int             `json:"total_questions"`
	StartedAt       time.Time       `json:"started_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
}

// QuestionEndedPayload is the payload for a question_ended event.
// CooldownEndsAt is nil when auto-advance is disabled: the cooldown is
// indefinite and held until the host advances manually.
type QuestionEndedPayload struct {
	QuestionID         string     `json:"question_id"`
	CooldownEndsAt     *time.Time `json:"cooldown_ends_at,omitempty"`
	CooldownSeconds    int        `json:"cooldown_seconds"`
	AutoAdvanceEnabled bool       `json:"auto_advance_enabled"`
}

// CooldownStartedPayload is the payload for a cooldown_started event,
// optionally carrying the participant's own result when the host enabled
// feedback during cooldown.
type CooldownStartedPayload struct {
	QuestionID      string                   `json:"question_id"`
	CooldownEndsAt  *time.Time               `json:"cooldown_ends_at,omitempty"`
	CooldownSeconds int                      `json:"cooldown_seconds"`
	YourAnswer      *models.CooldownFeedback `json:"your_answer,omitempty"`
}

// AnswerSubmittedPayload is the payload for an answer_submitted event.
type AnswerSubmittedPayload struct {
	QuestionID string                   `json:"question_id"`
	Result     *models.CooldownFeedback `json:"result,omitempty"`
}

// LeaderboardUpdatePayload is the payload for a leaderboard_update event.
type LeaderboardUpdatePayload struct {
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
}

// SessionEndedPayload is the payload for a session_ended event. The two
// flags gate what the client may show after completion; with both false the
// client shows only a bare completion acknowledgment.
type SessionEndedPayload struct {
	EndedAt            time.Time `json:"ended_at"`
	ShowResultFeedback bool      `json:"show_result_feedback"`
	ShowLeaderboard    bool      `json:"show_leaderboard"`
}

// AutoAdvanceUpdatedPayload is the payload for an auto_advance_updated
// event.
type AutoAdvanceUpdatedPayload struct {
	Enabled         bool `json:"enabled"`
	CooldownSeconds int  `json:"cooldown_seconds"`
}

// PingPayload is the (empty) payload for a ping event. Clients must reply
// with a pong client message immediately or the connection is presumed
// stale.
type PingPayload struct{}

// Client→server messages sent over the WebSocket.

// ClientMessageType represents the type of a message sent by a client.
type ClientMessageType string

const (
	ClientMessagePong ClientMessageType = "pong"
)

// ClientMessage is the envelope for client→server WebSocket messages.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
}
