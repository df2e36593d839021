package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// handleJoin creates a participant from a room code. For self-paced
// sessions the response carries the full question set and a progress row
// is started immediately.
func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req session.JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.sessions.Join(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Session.Mode == models.SessionModeSelfPaced {
		if _, err := h.selfPaced.Start(r.Context(), resp.Participant); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleSubmitAnswer records a live-mode answer for the open question.
func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	var req session.SubmitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == uuid.Nil {
		writeErrorMessage(w, http.StatusBadRequest, "question_id is required")
		return
	}

	submission, err := h.sessions.SubmitAnswer(r.Context(), participant, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submission)
}
