package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/sqlutil"
)

// Repository persists sessions, questions, participants and submissions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a session repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, quiz_id, quiz_title, mode, status, room_code, class_id, deadline,
	settings, current_question_id, question_expires_at, created_at, started_at, ended_at`

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("marshal session settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quiz_sessions (id, quiz_id, quiz_title, mode, status, room_code, class_id, deadline, settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.QuizID, s.QuizTitle, s.Mode, s.Status, s.RoomCode,
		sqlutil.ToNullUUID(s.ClassID), sqlutil.ToSqlTime(s.Deadline), settings, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetSessionByRoomCode fetches the most recent session for a room code.
func (r *Repository) GetSessionByRoomCode(ctx context.Context, roomCode string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE room_code = $1 ORDER BY created_at DESC LIMIT 1`,
		roomCode)
	return scanSession(row)
}

// GetLatestSessionByQuiz fetches the newest session created for a quiz.
func (r *Repository) GetLatestSessionByQuiz(ctx context.Context, quizID uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions WHERE quiz_id = $1 ORDER BY created_at DESC LIMIT 1`,
		quizID)
	return scanSession(row)
}

// UpdateSessionStatus transitions a session's status, stamping started_at or
// ended_at as appropriate.
func (r *Repository) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, at time.Time) error {
	var err error
	switch status {
	case models.SessionStatusActive:
		_, err = r.db.ExecContext(ctx,
			`UPDATE quiz_sessions SET status = $2, started_at = $3 WHERE id = $1`, id, status, at)
	case models.SessionStatusCompleted:
		_, err = r.db.ExecContext(ctx,
			`UPDATE quiz_sessions SET status = $2, ended_at = $3, current_question_id = NULL, question_expires_at = NULL WHERE id = $1`,
			id, status, at)
	default:
		_, err = r.db.ExecContext(ctx,
			`UPDATE quiz_sessions SET status = $2 WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// UpdateSessionSettings replaces a session's settings JSONB.
func (r *Repository) UpdateSessionSettings(ctx context.Context, id uuid.UUID, settings models.SessionSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal session settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET settings = $2 WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("failed to update session settings: %w", err)
	}
	return nil
}

// SetCurrentQuestion marks the single open question of a live session along
// with its absolute expiry instant. Passing nil clears the open question.
func (r *Repository) SetCurrentQuestion(ctx context.Context, id uuid.UUID, questionID *uuid.UUID, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET current_question_id = $2, question_expires_at = $3 WHERE id = $1`,
		id, sqlutil.ToNullUUID(questionID), sqlutil.ToSqlTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to set current question: %w", err)
	}
	return nil
}

// GetQuiz fetches a quiz header by id.
func (r *Repository) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title FROM quizzes WHERE id = $1`, id).Scan(&quiz.ID, &quiz.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &quiz, nil
}

// ListQuestions fetches a quiz's questions ordered by position.
func (r *Repository) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quiz_id, order_index, type, text, options, correct_options, correct_bool,
		       keywords, explanation, points, time_limit_seconds
		FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index`, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetQuestion fetches one question by id.
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, quiz_id, order_index, type, text, options, correct_options, correct_bool,
		       keywords, explanation, points, time_limit_seconds
		FROM quiz_questions WHERE id = $1`, id)
	return scanQuestion(row)
}

// CreateParticipant inserts a joined participant.
func (r *Repository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quiz_participants (id, session_id, display_name, student_id, is_guest, score, token, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.SessionID, p.DisplayName, p.StudentID, p.IsGuest, p.Score, p.Token, p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// GetParticipantByToken resolves a participant from its auth token.
func (r *Repository) GetParticipantByToken(ctx context.Context, token string) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, display_name, student_id, is_guest, score, token, joined_at
		FROM quiz_participants WHERE token = $1`, token)
	return scanParticipant(row)
}

// GetParticipant fetches a participant by id.
func (r *Repository) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, display_name, student_id, is_guest, score, token, joined_at
		FROM quiz_participants WHERE id = $1`, id)
	return scanParticipant(row)
}

// ListParticipants fetches all participants of a session in join order.
func (r *Repository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, display_name, student_id, is_guest, score, token, joined_at
		FROM quiz_participants WHERE session_id = $1 ORDER BY joined_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// AddParticipantScore adds earned points to a participant's running score.
func (r *Repository) AddParticipantScore(ctx context.Context, participantID uuid.UUID, points int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE quiz_participants SET score = score + $2 WHERE id = $1`, participantID, points)
	if err != nil {
		return fmt.Errorf("failed to add participant score: %w", err)
	}
	return nil
}

// InsertSubmission records a live-mode submission. The unique constraint on
// (participant_id, question_id) makes repeated submissions report
// ErrAlreadyAnswered instead of creating a duplicate.
func (r *Repository) InsertSubmission(ctx context.Context, sub *models.AnswerSubmission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quiz_answer_submissions (id, session_id, question_id, participant_id, answer, time_taken_ms, is_correct, points_earned, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.SessionID, sub.QuestionID, sub.ParticipantID,
		pqtype.NullRawMessage{RawMessage: sub.Answer, Valid: len(sub.Answer) > 0},
		sub.TimeTakenMs, sub.IsCorrect, sub.PointsEarned, sub.SubmittedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrAlreadyAnswered
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// UpsertSubmission saves a self-paced answer, overwriting any prior answer
// for the same (participant, question).
func (r *Repository) UpsertSubmission(ctx context.Context, sub *models.AnswerSubmission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quiz_answer_submissions (id, session_id, question_id, participant_id, answer, time_taken_ms, is_correct, points_earned, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (participant_id, question_id) DO UPDATE
		SET answer = EXCLUDED.answer, time_taken_ms = EXCLUDED.time_taken_ms,
		    is_correct = EXCLUDED.is_correct, points_earned = EXCLUDED.points_earned,
		    submitted_at = EXCLUDED.submitted_at`,
		sub.ID, sub.SessionID, sub.QuestionID, sub.ParticipantID,
		pqtype.NullRawMessage{RawMessage: sub.Answer, Valid: len(sub.Answer) > 0},
		sub.TimeTakenMs, sub.IsCorrect, sub.PointsEarned, sub.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

// GetSubmission fetches one participant's submission for a question.
func (r *Repository) GetSubmission(ctx context.Context, participantID, questionID uuid.UUID) (*models.AnswerSubmission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, question_id, participant_id, answer, time_taken_ms, is_correct, points_earned, submitted_at
		FROM quiz_answer_submissions WHERE participant_id = $1 AND question_id = $2`,
		participantID, questionID)
	return scanSubmission(row)
}

// ListSubmissionsByParticipant fetches all of a participant's submissions.
func (r *Repository) ListSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.AnswerSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, question_id, participant_id, answer, time_taken_ms, is_correct, points_earned, submitted_at
		FROM quiz_answer_submissions WHERE participant_id = $1 ORDER BY submitted_at`, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.AnswerSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// ListSubmissionsBySession fetches all submissions of a session.
func (r *Repository) ListSubmissionsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AnswerSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, question_id, participant_id, answer, time_taken_ms, is_correct, points_earned, submitted_at
		FROM quiz_answer_submissions WHERE session_id = $1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.AnswerSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s         models.Session
		classID   uuid.NullUUID
		deadline  sql.NullTime
		settings  []byte
		currentQ  uuid.NullUUID
		expiresAt sql.NullTime
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	err := row.Scan(&s.ID, &s.QuizID, &s.QuizTitle, &s.Mode, &s.Status, &s.RoomCode,
		&classID, &deadline, &settings, &currentQ, &expiresAt, &s.CreatedAt, &startedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &s.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal session settings: %w", err)
		}
	}
	s.ClassID = sqlutil.FromNullUUID(classID)
	s.Deadline = sqlutil.FromSqlTime(deadline)
	s.CurrentQuestion = sqlutil.FromNullUUID(currentQ)
	s.QuestionExpiresAt = sqlutil.FromSqlTime(expiresAt)
	s.StartedAt = sqlutil.FromSqlTime(startedAt)
	s.EndedAt = sqlutil.FromSqlTime(endedAt)
	return &s, nil
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q           models.Question
		options     []byte
		correctOpts []byte
		correctBool sql.NullBool
		keywords    []byte
	)
	err := row.Scan(&q.ID, &q.QuizID, &q.OrderIndex, &q.Type, &q.Text, &options,
		&correctOpts, &correctBool, &keywords, &q.Explanation, &q.Points, &q.TimeLimitSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal question options: %w", err)
		}
	}
	if len(correctOpts) > 0 {
		if err := json.Unmarshal(correctOpts, &q.CorrectOptions); err != nil {
			return nil, fmt.Errorf("unmarshal correct options: %w", err)
		}
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &q.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	if correctBool.Valid {
		q.CorrectBool = &correctBool.Bool
	}
	return &q, nil
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.DisplayName, &p.StudentID, &p.IsGuest,
		&p.Score, &p.Token, &p.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	return &p, nil
}

func scanSubmission(row rowScanner) (*models.AnswerSubmission, error) {
	var (
		s      models.AnswerSubmission
		answer pqtype.NullRawMessage
	)
	err := row.Scan(&s.ID, &s.SessionID, &s.QuestionID, &s.ParticipantID, &answer,
		&s.TimeTakenMs, &s.IsCorrect, &s.PointsEarned, &s.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	if answer.Valid {
		s.Answer = answer.RawMessage
	}
	return &s, nil
}
