package gateway

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/leaderboard"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// SessionStateProvider builds state snapshots from the session service.
type SessionStateProvider struct {
	sessions *session.Service
	clock    clockwork.Clock
}

// NewSessionStateProvider creates a state provider.
func NewSessionStateProvider(sessions *session.Service, clock clockwork.Clock) *SessionStateProvider {
	return &SessionStateProvider{
		sessions: sessions,
		clock:    clock,
	}
}

// GetSessionState assembles the participant's view of the session at this
// instant. The open question, if any, comes back sanitized with its
// absolute expiry so the client rebuilds its countdown from server truth.
func (p *SessionStateProvider) GetSessionState(ctx context.Context, participant *models.Participant) (*SessionStateResponse, error) {
	sess, err := p.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, err
	}

	state := &SessionStateResponse{
		SessionID:       sess.ID.String(),
		Status:          sess.Status,
		Mode:            sess.Mode,
		QuizTitle:       sess.QuizTitle,
		ShowLeaderboard: sess.Settings.ShowLeaderboard,
		ServerTimestamp: p.clock.Now().UTC(),
	}

	if sess.Mode == models.SessionModeLive && sess.Status == models.SessionStatusActive && sess.CurrentQuestion != nil {
		questions, err := p.sessions.Repo().ListQuestions(ctx, sess.QuizID)
		if err != nil {
			return nil, err
		}
		for i, q := range questions {
			if q.ID == *sess.CurrentQuestion {
				state.CurrentQuestion = &CurrentQuestionInfo{
					Question:       q.Sanitized(),
					QuestionNumber: i + 1,
					TotalQuestions: len(questions),
					ExpiresAt:      sess.QuestionExpiresAt,
				}
				break
			}
		}

		_, err = p.sessions.Repo().GetSubmission(ctx, participant.ID, *sess.CurrentQuestion)
		switch {
		case err == nil:
			state.Answered = true
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, err
		}
	}

	if sess.Settings.ShowLeaderboard && sess.Status != models.SessionStatusWaiting {
		participants, err := p.sessions.ListParticipants(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		submissions, err := p.sessions.Repo().ListSubmissionsBySession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		state.Leaderboard = leaderboard.Compute(participants, submissions)
	}

	return state, nil
}
