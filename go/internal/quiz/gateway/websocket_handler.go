package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// ParticipantAuthenticator resolves a participant from a bearer token.
type ParticipantAuthenticator interface {
	AuthenticateParticipant(ctx context.Context, token string) (*models.Participant, error)
}

// WebSocketHandler handles WebSocket upgrade requests for session
// connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	auth              ParticipantAuthenticator
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, auth ParticipantAuthenticator) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		auth:              auth,
	}
}

// HandleSessionConnection authenticates the participant token and upgrades
// the connection. The token alone determines both identity and session, so
// a client cannot attach to someone else's session.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	participant, err := h.auth.AuthenticateParticipant(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, participant.ID.String(), participant.SessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", participant.SessionID.String()).
			Str("participant_id", participant.ID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, sessions := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"total_connections":` + strconv.Itoa(total) + `,"active_sessions":` + strconv.Itoa(sessions) + `}`))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
