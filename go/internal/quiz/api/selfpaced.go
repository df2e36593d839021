package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	progress, err := h.selfPaced.Overview(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	var req struct {
		QuestionIndex int `json:"question_index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.selfPaced.Navigate(r.Context(), participant, req.QuestionIndex); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"question_index": req.QuestionIndex})
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	var req session.SubmitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == uuid.Nil {
		writeErrorMessage(w, http.StatusBadRequest, "question_id is required")
		return
	}

	if err := h.selfPaced.SaveAnswer(r.Context(), participant, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	reviews, err := h.selfPaced.Review(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// handleFinalSubmit finalizes a self-paced attempt. Safe to repeat: the
// stored result comes back unchanged.
func (h *Handler) handleFinalSubmit(w http.ResponseWriter, r *http.Request, participant *models.Participant) {
	result, err := h.selfPaced.Submit(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
