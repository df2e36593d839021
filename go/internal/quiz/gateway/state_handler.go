package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// StateProvider builds the authoritative session snapshot a reconnecting
// client resynchronizes from.
type StateProvider interface {
	GetSessionState(ctx context.Context, participant *models.Participant) (*SessionStateResponse, error)
}

// SessionStateResponse is the complete client-visible state of a session at
// one server instant. ServerTimestamp anchors every countdown the client
// rebuilds from this snapshot.
type SessionStateResponse struct {
	SessionID       string                    `json:"session_id"`
	Status          models.SessionStatus      `json:"status"`
	Mode            models.SessionMode        `json:"mode"`
	QuizTitle       string                    `json:"quiz_title"`
	CurrentQuestion *CurrentQuestionInfo      `json:"current_question,omitempty"`
	Answered        bool                      `json:"answered"`
	Leaderboard     []models.LeaderboardEntry `json:"leaderboard,omitempty"`
	ShowLeaderboard bool                      `json:"show_leaderboard"`
	ServerTimestamp time.Time                 `json:"server_timestamp"`
}

// CurrentQuestionInfo describes the open question of an active live
// session.
type CurrentQuestionInfo struct {
	Question       models.Question `json:"question"`
	QuestionNumber int             `json:"question_number"`
	TotalQuestions int             `json:"total_questions"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

// StateHandler serves session state snapshots over HTTP.
type StateHandler struct {
	stateProvider StateProvider
	auth          ParticipantAuthenticator
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, auth ParticipantAuthenticator) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
		auth:          auth,
	}
}

// HandleSessionState returns the participant's current session snapshot.
func (h *StateHandler) HandleSessionState(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	participant, err := h.auth.AuthenticateParticipant(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	state, err := h.stateProvider.GetSessionState(r.Context(), participant)
	if err != nil {
		log.Error().Err(err).
			Str("participant_id", participant.ID.String()).
			Msg("failed to build session state")
		http.Error(w, "failed to get session state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode session state")
	}
}

// RegisterRoutes registers state routes with an HTTP mux
func (h *StateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/state", h.HandleSessionState)
}
