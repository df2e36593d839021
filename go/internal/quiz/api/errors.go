package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/live"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/roster"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/selfpaced"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// writeError maps service errors onto HTTP statuses. Validation failures
// are 400, missing resources 404, conflicting state 409, and rejected
// submissions 422; anything unmapped is a 500 with the detail kept out of
// the response.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrMissingDisplayName),
		errors.Is(err, selfpaced.ErrQuestionIndexOutOfRange):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, session.ErrRoomCodeNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrQuizNotFound),
		errors.Is(err, selfpaced.ErrNoProgress),
		errors.Is(err, roster.ErrRosterEntryNotFound),
		errors.Is(err, roster.ErrOutsiderNotFound),
		errors.Is(err, sql.ErrNoRows):
		writeErrorMessage(w, http.StatusNotFound, err.Error())

	case errors.Is(err, session.ErrSessionNotJoinable),
		errors.Is(err, live.ErrSessionNotStartable),
		errors.Is(err, live.ErrNotLiveSession),
		errors.Is(err, live.ErrNoOpenQuestion),
		errors.Is(err, selfpaced.ErrNotSelfPaced),
		errors.Is(err, selfpaced.ErrAlreadySubmitted),
		errors.Is(err, roster.ErrOutsiderAlreadyResolved),
		errors.Is(err, roster.ErrRosterStudentAlreadyJoined),
		errors.Is(err, roster.ErrNoClassSet):
		writeErrorMessage(w, http.StatusConflict, err.Error())

	case errors.Is(err, session.ErrQuestionNotOpen),
		errors.Is(err, session.ErrAlreadyAnswered),
		errors.Is(err, session.ErrSessionNotActive),
		errors.Is(err, selfpaced.ErrDeadlinePassed),
		errors.Is(err, selfpaced.ErrAnswersIncomplete),
		errors.Is(err, selfpaced.ErrNavigationNotAllowed),
		errors.Is(err, selfpaced.ErrReviewNotAllowed):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())

	default:
		log.Error().Err(err).Msg("unhandled API error")
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
