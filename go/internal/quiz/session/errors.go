package session

import "errors"

// Join-time validation errors. These are fatal to starting a session and are
// surfaced to the user before any phase transition.
var (
	ErrRoomCodeNotFound   = errors.New("room code not found")
	ErrSessionNotJoinable = errors.New("session is not joinable")
	ErrMissingDisplayName = errors.New("display name is required")
)

// In-session submission errors. Non-fatal: they never alter the
// participant's phase.
var (
	ErrQuestionNotOpen  = errors.New("question is not open")
	ErrAlreadyAnswered  = errors.New("question already answered")
	ErrSessionNotActive = errors.New("session is not active")
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// ErrQuizNotFound is returned when a quiz id resolves to nothing.
var ErrQuizNotFound = errors.New("quiz not found")
