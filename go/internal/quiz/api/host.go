package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quiz, err := h.sessions.Repo().GetQuiz(r.Context(), req.QuizID)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.sessions.CreateSession(r.Context(), quiz, req)
	if err != nil {
		writeError(w, err)
		return
	}

	// A class-linked session gets its roster pulled at creation so joins
	// reconcile from the first participant on.
	if sess.ClassID != nil && h.roster != nil {
		if err := h.roster.Sync(r.Context(), sess); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	quizID, err := uuid.Parse(r.PathValue("quizID"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid quiz id")
		return
	}
	sess, err := h.sessions.GetLatestSessionByQuiz(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	sess, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	participants, err := h.sessions.ListParticipants(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	h.liveAction(w, r, h.live.StartSession)
}

func (h *Handler) handleEndQuestion(w http.ResponseWriter, r *http.Request) {
	h.liveAction(w, r, h.live.EndQuestion)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.liveAction(w, r, h.live.Advance)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	h.liveAction(w, r, h.live.EndSession)
}

func (h *Handler) handleAutoAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	var req struct {
		Enabled         bool `json:"enabled"`
		CooldownSeconds int  `json:"cooldown_seconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.live.SetAutoAdvance(r.Context(), sessionID, req.Enabled, req.CooldownSeconds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	analytics, err := h.sessions.Analytics(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) liveAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, sessionID uuid.UUID) error) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := action(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID.String()})
}
