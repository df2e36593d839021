package selfpaced

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/sqlutil"
)

// Repository persists per-participant self-paced progress.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a self-paced progress repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateProgress inserts a fresh in-progress row for a participant.
func (r *Repository) CreateProgress(ctx context.Context, p *models.SelfPacedProgress) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quiz_selfpaced_progress (participant_id, session_id, current_question_index, status, score, auto_submitted)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ParticipantID, p.SessionID, p.CurrentQuestionIndex, p.Status, p.Score, p.AutoSubmitted,
	)
	if err != nil {
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

// GetProgress fetches a participant's progress row.
func (r *Repository) GetProgress(ctx context.Context, participantID uuid.UUID) (*models.SelfPacedProgress, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT participant_id, session_id, current_question_index, status, score, submitted_at, auto_submitted
		FROM quiz_selfpaced_progress WHERE participant_id = $1`, participantID)
	return scanProgress(row)
}

// UpdateCurrentQuestion moves the participant's question pointer.
func (r *Repository) UpdateCurrentQuestion(ctx context.Context, participantID uuid.UUID, index int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quiz_selfpaced_progress SET current_question_index = $2
		WHERE participant_id = $1 AND status = 'in_progress'`,
		participantID, index)
	if err != nil {
		return fmt.Errorf("failed to update current question: %w", err)
	}
	return nil
}

// MarkSubmitted transitions a participant to submitted with their final
// score. The status guard makes the transition first-wins: a second submit,
// or an auto-submit racing a manual one, changes nothing.
func (r *Repository) MarkSubmitted(ctx context.Context, participantID uuid.UUID, score int, at time.Time, auto bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quiz_selfpaced_progress
		SET status = 'submitted', score = $2, submitted_at = $3, auto_submitted = $4
		WHERE participant_id = $1 AND status = 'in_progress'`,
		participantID, score, at, auto)
	if err != nil {
		return false, fmt.Errorf("failed to mark submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark submitted: %w", err)
	}
	return n > 0, nil
}

// ListInProgress fetches every participant of a session still in progress.
func (r *Repository) ListInProgress(ctx context.Context, sessionID uuid.UUID) ([]models.SelfPacedProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT participant_id, session_id, current_question_index, status, score, submitted_at, auto_submitted
		FROM quiz_selfpaced_progress WHERE session_id = $1 AND status = 'in_progress'`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-progress participants: %w", err)
	}
	defer rows.Close()

	var progress []models.SelfPacedProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		progress = append(progress, *p)
	}
	return progress, rows.Err()
}

// ListSessionsPastDeadline fetches active self-paced sessions whose deadline
// has passed.
func (r *Repository) ListSessionsPastDeadline(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM quiz_sessions
		WHERE mode = 'self_paced' AND status = 'active' AND deadline IS NOT NULL AND deadline <= $1`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions past deadline: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.SelfPacedProgress, error) {
	var (
		p           models.SelfPacedProgress
		submittedAt sql.NullTime
	)
	err := row.Scan(&p.ParticipantID, &p.SessionID, &p.CurrentQuestionIndex, &p.Status,
		&p.Score, &submittedAt, &p.AutoSubmitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}
	p.SubmittedAt = sqlutil.FromSqlTime(submittedAt)
	return &p, nil
}
