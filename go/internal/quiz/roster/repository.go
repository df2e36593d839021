package roster

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

// Repository persists session rosters and outsider records.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a roster repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ReplaceRoster swaps a session's roster for the given entries in one
// transaction. Entries for students who already joined keep their joined
// state via the conflict clause, so a re-sync never un-joins anyone.
func (r *Repository) ReplaceRoster(ctx context.Context, sessionID uuid.UUID, entries []models.RosterEntry) error {
	return sqlutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM quiz_roster_entries
			WHERE session_id = $1 AND joined = false`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to clear roster: %w", err)
		}
		for _, e := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO quiz_roster_entries (id, session_id, student_school_id, student_name, joined)
				VALUES ($1, $2, $3, $4, false)
				ON CONFLICT (session_id, student_school_id) DO UPDATE
				SET student_name = EXCLUDED.student_name`,
				e.ID, sessionID, e.StudentSchoolID, e.StudentName)
			if err != nil {
				return fmt.Errorf("failed to insert roster entry: %w", err)
			}
		}
		return nil
	})
}

// ListRoster fetches a session's roster ordered by student name.
func (r *Repository) ListRoster(ctx context.Context, sessionID uuid.UUID) ([]models.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_school_id, student_name, joined, joined_at, participant_id
		FROM quiz_roster_entries WHERE session_id = $1 ORDER BY student_name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	defer rows.Close()

	var entries []models.RosterEntry
	for rows.Next() {
		e, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountRoster reports how many roster entries a session has.
func (r *Repository) CountRoster(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_roster_entries WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count roster: %w", err)
	}
	return n, nil
}

// ClaimRosterEntry marks a roster student as joined by a participant. The
// joined guard makes the claim first-wins: a second participant claiming
// the same student gets claimed=false.
func (r *Repository) ClaimRosterEntry(ctx context.Context, sessionID uuid.UUID, studentSchoolID string, participantID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quiz_roster_entries
		SET joined = true, joined_at = $4, participant_id = $3
		WHERE session_id = $1 AND student_school_id = $2 AND joined = false`,
		sessionID, studentSchoolID, participantID, at)
	if err != nil {
		return false, fmt.Errorf("failed to claim roster entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim roster entry: %w", err)
	}
	return n > 0, nil
}

// GetRosterEntry fetches one roster entry by student school id.
func (r *Repository) GetRosterEntry(ctx context.Context, sessionID uuid.UUID, studentSchoolID string) (*models.RosterEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_school_id, student_name, joined, joined_at, participant_id
		FROM quiz_roster_entries WHERE session_id = $1 AND student_school_id = $2`,
		sessionID, studentSchoolID)
	return scanRosterEntry(row)
}

// GetRosterEntryByName fetches a roster entry by case-insensitive student
// name match.
func (r *Repository) GetRosterEntryByName(ctx context.Context, sessionID uuid.UUID, name string) (*models.RosterEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_school_id, student_name, joined, joined_at, participant_id
		FROM quiz_roster_entries WHERE session_id = $1 AND LOWER(student_name) = LOWER($2)`,
		sessionID, name)
	return scanRosterEntry(row)
}

// CreateOutsider records an unmatched participant.
func (r *Repository) CreateOutsider(ctx context.Context, o *models.OutsiderRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quiz_outsiders (id, session_id, participant_id, display_name, supplied_student_id, detection_reason, flagged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.SessionID, o.ParticipantID, o.DisplayName, o.SuppliedStudentID,
		o.DetectionReason, o.Flagged, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outsider record: %w", err)
	}
	return nil
}

// GetOutsider fetches one outsider record.
func (r *Repository) GetOutsider(ctx context.Context, id uuid.UUID) (*models.OutsiderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, participant_id, display_name, supplied_student_id, detection_reason, flagged, teacher_notes, assigned_student_id, created_at
		FROM quiz_outsiders WHERE id = $1`, id)
	return scanOutsider(row)
}

// ListOutsiders fetches a session's outsiders in join order.
func (r *Repository) ListOutsiders(ctx context.Context, sessionID uuid.UUID) ([]models.OutsiderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, participant_id, display_name, supplied_student_id, detection_reason, flagged, teacher_notes, assigned_student_id, created_at
		FROM quiz_outsiders WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outsiders: %w", err)
	}
	defer rows.Close()

	var outsiders []models.OutsiderRecord
	for rows.Next() {
		o, err := scanOutsider(rows)
		if err != nil {
			return nil, err
		}
		outsiders = append(outsiders, *o)
	}
	return outsiders, rows.Err()
}

// SetOutsiderFlag updates an outsider's flagged state and teacher notes.
func (r *Repository) SetOutsiderFlag(ctx context.Context, id uuid.UUID, flagged bool, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE quiz_outsiders SET flagged = $2, teacher_notes = $3 WHERE id = $1`,
		id, flagged, notes)
	if err != nil {
		return fmt.Errorf("failed to update outsider flag: %w", err)
	}
	return nil
}

// ResolveOutsider records the terminal assignment of an outsider to a
// roster student. The NULL guard makes resolution first-wins.
func (r *Repository) ResolveOutsider(ctx context.Context, id uuid.UUID, studentSchoolID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quiz_outsiders SET assigned_student_id = $2
		WHERE id = $1 AND assigned_student_id IS NULL`,
		id, studentSchoolID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve outsider: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to resolve outsider: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRosterEntry(row rowScanner) (*models.RosterEntry, error) {
	var (
		e             models.RosterEntry
		joinedAt      sql.NullTime
		participantID uuid.NullUUID
	)
	err := row.Scan(&e.ID, &e.SessionID, &e.StudentSchoolID, &e.StudentName,
		&e.Joined, &joinedAt, &participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRosterEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan roster entry: %w", err)
	}
	e.JoinedAt = sqlutil.FromSqlTime(joinedAt)
	e.ParticipantID = sqlutil.FromNullUUID(participantID)
	return &e, nil
}

func scanOutsider(row rowScanner) (*models.OutsiderRecord, error) {
	var (
		o          models.OutsiderRecord
		notes      sql.NullString
		assignedID sql.NullString
	)
	err := row.Scan(&o.ID, &o.SessionID, &o.ParticipantID, &o.DisplayName,
		&o.SuppliedStudentID, &o.DetectionReason, &o.Flagged, &notes, &assignedID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutsiderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outsider record: %w", err)
	}
	o.TeacherNotes = sqlutil.FromSqlString(notes, "")
	o.AssignedStudentID = sqlutil.FromSqlStringPtr(assignedID)
	return &o, nil
}
