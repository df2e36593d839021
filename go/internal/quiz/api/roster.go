package api

import (
	"net/http"

	"github.com/google/uuid"
)

func (h *Handler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		writeErrorMessage(w, http.StatusNotFound, "roster is not configured")
		return
	}
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	attendance, err := h.roster.Attendance(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attendance)
}

// handleRosterSync re-pulls the class roster. Students who already joined
// stay joined.
func (h *Handler) handleRosterSync(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		writeErrorMessage(w, http.StatusNotFound, "roster is not configured")
		return
	}
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
	if err := h.roster.Sync(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	attendance, err := h.roster.Attendance(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attendance)
}

func (h *Handler) handleFlagOutsider(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		writeErrorMessage(w, http.StatusNotFound, "roster is not configured")
		return
	}
	outsiderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid outsider id")
		return
	}
	var req struct {
		Flagged bool   `json:"flagged"`
		Notes   string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.roster.SetOutsiderFlag(r.Context(), outsiderID, req.Flagged, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleAssignOutsider resolves an outsider to a roster student. The
// assignment is terminal; assigning to an already-joined student is a
// conflict.
func (h *Handler) handleAssignOutsider(w http.ResponseWriter, r *http.Request) {
	if h.roster == nil {
		writeErrorMessage(w, http.StatusNotFound, "roster is not configured")
		return
	}
	outsiderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid outsider id")
		return
	}
	var req struct {
		StudentSchoolID string `json:"student_school_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.StudentSchoolID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "student_school_id is required")
		return
	}

	record, err := h.roster.AssignOutsider(r.Context(), outsiderID, req.StudentSchoolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
