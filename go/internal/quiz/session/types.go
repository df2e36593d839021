package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// CreateSessionRequest represents a request to create a new session.
type CreateSessionRequest struct {
	QuizID   uuid.UUID              `json:"quiz_id"`
	Mode     models.SessionMode     `json:"mode"`
	ClassID  *uuid.UUID             `json:"class_id,omitempty"`
	Deadline *time.Time             `json:"deadline,omitempty"`
	Settings models.SessionSettings `json:"settings"`
}

// JoinRequest represents a participant join attempt.
type JoinRequest struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
	StudentID   string `json:"student_id,omitempty"`
}

// JoinResponse is returned on a successful join. AuthToken authenticates
// the participant's WebSocket upgrade and follow-up requests.
type JoinResponse struct {
	Session     *models.Session     `json:"session"`
	Participant *models.Participant `json:"participant"`
	AuthToken   string              `json:"auth_token"`
	Questions   []models.Question   `json:"questions,omitempty"` // self-paced: full set at join
}

// SubmitAnswerRequest represents a live-mode answer submission.
// TimeTakenMs is client-reported and informational only; the authoritative
// elapsed time is computed server-side from the question start instant.
type SubmitAnswerRequest struct {
	QuestionID  uuid.UUID       `json:"question_id"`
	Answer      json.RawMessage `json:"answer"`
	TimeTakenMs int             `json:"time_taken_ms"`
}

// AnalyticsQuestion summarizes one question's results.
type AnalyticsQuestion struct {
	QuestionID   uuid.UUID `json:"question_id"`
	OrderIndex   int       `json:"order_index"`
	Text         string    `json:"text"`
	Submissions  int       `json:"submissions"`
	CorrectCount int       `json:"correct_count"`
	CorrectRate  float64   `json:"correct_rate"`
}

// Analytics summarizes a session for the host.
type Analytics struct {
	SessionID        uuid.UUID           `json:"session_id"`
	ParticipantCount int                 `json:"participant_count"`
	AverageScore     float64             `json:"average_score"`
	Questions        []AnalyticsQuestion `json:"questions"`
}
