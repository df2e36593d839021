package selfpaced

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// RunDeadlineWatcher sweeps for self-paced sessions past their deadline and
// force-submits every attempt still in progress, then completes the
// session. Auto-submitted attempts score exactly what a manual submit at
// that instant would have scored. Blocks until ctx is cancelled.
func (s *Service) RunDeadlineWatcher(ctx context.Context) {
	ticker := s.clock.NewTicker(DeadlineSweepInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", DeadlineSweepInterval).Msg("Self-paced deadline watcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Self-paced deadline watcher stopped")
			return
		case <-ticker.Chan():
			s.sweepDeadlines(ctx)
		}
	}
}

func (s *Service) sweepDeadlines(ctx context.Context) {
	sessionIDs, err := s.repo.ListSessionsPastDeadline(ctx, s.clock.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Deadline sweep query failed")
		return
	}
	for _, sessionID := range sessionIDs {
		if err := s.closeExpiredSession(ctx, sessionID); err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to close expired session")
		}
	}
}

func (s *Service) closeExpiredSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	questions, err := s.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return err
	}
	inProgress, err := s.repo.ListInProgress(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, progress := range inProgress {
		subs, err := s.sessions.Repo().ListSubmissionsByParticipant(ctx, progress.ParticipantID)
		if err != nil {
			return err
		}
		if _, err := s.finalize(ctx, sess, progress.ParticipantID, questions, subs, true); err != nil {
			return err
		}
	}

	if err := s.sessions.Repo().UpdateSessionStatus(ctx, sessionID, models.SessionStatusCompleted, s.clock.Now().UTC()); err != nil {
		return err
	}
	log.Info().
		Str("session_id", sessionID.String()).
		Int("auto_submitted", len(inProgress)).
		Msg("Expired self-paced session closed")
	return nil
}
