// Package api exposes the HTTP surface of the quiz engine: participant
// join and answering, self-paced progress, and the host's session
// controls. Real-time delivery happens over the gateway WebSocket; this
// package covers everything request/response shaped.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/live"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/roster"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/selfpaced"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// Handler wires the quiz services into HTTP routes.
type Handler struct {
	sessions  *session.Service
	live      *live.Controller
	selfPaced *selfpaced.Service
	roster    *roster.Service

	// hostKey guards host routes when non-empty.
	hostKey string
}

// NewHandler creates the API handler. roster may be nil when no class
// directory is configured; roster routes then return 404.
func NewHandler(sessions *session.Service, liveCtrl *live.Controller, selfPaced *selfpaced.Service, rosterSvc *roster.Service, hostKey string) *Handler {
	return &Handler{
		sessions:  sessions,
		live:      liveCtrl,
		selfPaced: selfPaced,
		roster:    rosterSvc,
		hostKey:   hostKey,
	}
}

// RegisterRoutes registers all API routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Participant routes
	mux.HandleFunc("POST /api/sessions/join", h.handleJoin)
	mux.HandleFunc("POST /api/session/answer", h.withParticipant(h.handleSubmitAnswer))

	// Self-paced routes
	mux.HandleFunc("GET /api/selfpaced/progress", h.withParticipant(h.handleProgress))
	mux.HandleFunc("POST /api/selfpaced/navigate", h.withParticipant(h.handleNavigate))
	mux.HandleFunc("POST /api/selfpaced/answer", h.withParticipant(h.handleSaveAnswer))
	mux.HandleFunc("GET /api/selfpaced/review", h.withParticipant(h.handleReview))
	mux.HandleFunc("POST /api/selfpaced/submit", h.withParticipant(h.handleFinalSubmit))

	// Host routes
	mux.HandleFunc("POST /api/host/sessions", h.withHost(h.handleCreateSession))
	mux.HandleFunc("GET /api/host/quizzes/{quizID}/latest-session", h.withHost(h.handleLatestSession))
	mux.HandleFunc("GET /api/host/sessions/{id}", h.withHost(h.handleGetSession))
	mux.HandleFunc("GET /api/host/sessions/{id}/participants", h.withHost(h.handleListParticipants))
	mux.HandleFunc("POST /api/host/sessions/{id}/start", h.withHost(h.handleStartSession))
	mux.HandleFunc("POST /api/host/sessions/{id}/end-question", h.withHost(h.handleEndQuestion))
	mux.HandleFunc("POST /api/host/sessions/{id}/advance", h.withHost(h.handleAdvance))
	mux.HandleFunc("POST /api/host/sessions/{id}/auto-advance", h.withHost(h.handleAutoAdvance))
	mux.HandleFunc("POST /api/host/sessions/{id}/end", h.withHost(h.handleEndSession))
	mux.HandleFunc("GET /api/host/sessions/{id}/analytics", h.withHost(h.handleAnalytics))

	// Roster routes
	mux.HandleFunc("GET /api/host/sessions/{id}/attendance", h.withHost(h.handleAttendance))
	mux.HandleFunc("POST /api/host/sessions/{id}/roster/sync", h.withHost(h.handleRosterSync))
	mux.HandleFunc("POST /api/host/outsiders/{id}/flag", h.withHost(h.handleFlagOutsider))
	mux.HandleFunc("POST /api/host/outsiders/{id}/assign", h.withHost(h.handleAssignOutsider))
}

type participantHandler func(w http.ResponseWriter, r *http.Request, participant *models.Participant)

// withParticipant authenticates the participant token from the
// Authorization header before invoking the handler.
func (h *Handler) withParticipant(next participantHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing participant token")
			return
		}
		participant, err := h.sessions.AuthenticateParticipant(r.Context(), token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid participant token")
			return
		}
		next(w, r, participant)
	}
}

// withHost guards host routes with the configured API key. An empty key
// leaves the routes open for development.
func (h *Handler) withHost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.hostKey != "" && r.Header.Get("X-API-Key") != h.hostKey {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid host key")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
