package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/bus"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *clockwork.FakeClock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(testNow)
	svc := NewService(NewRepository(db), bus.NewInProcBus(), nil, clock)
	return svc, mock, clock
}

func sessionRows(s *models.Session) *sqlmock.Rows {
	settings, _ := json.Marshal(s.Settings)
	rows := sqlmock.NewRows([]string{
		"id", "quiz_id", "quiz_title", "mode", "status", "room_code", "class_id", "deadline",
		"settings", "current_question_id", "question_expires_at", "created_at", "started_at", "ended_at",
	})
	rows.AddRow(s.ID, s.QuizID, s.QuizTitle, s.Mode, s.Status, s.RoomCode,
		nullUUID(s.ClassID), nullTime(s.Deadline), settings,
		nullUUID(s.CurrentQuestion), nullTime(s.QuestionExpiresAt), s.CreatedAt,
		nullTime(s.StartedAt), nullTime(s.EndedAt))
	return rows
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func TestJoinRequiresDisplayName(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Join(context.Background(), JoinRequest{RoomCode: "ABC234", DisplayName: "   "})
	assert.ErrorIs(t, err, ErrMissingDisplayName)
}

func TestJoinUnknownRoomCode(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE room_code").
		WithArgs("NOP234").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Join(context.Background(), JoinRequest{RoomCode: "nop234", DisplayName: "alice"})
	assert.ErrorIs(t, err, ErrRoomCodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinCompletedSessionRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	sess := &models.Session{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		Mode:      models.SessionModeLive,
		Status:    models.SessionStatusCompleted,
		RoomCode:  "ABC234",
		CreatedAt: testNow,
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE room_code").
		WithArgs("ABC234").
		WillReturnRows(sessionRows(sess))

	_, err := svc.Join(context.Background(), JoinRequest{RoomCode: "ABC234", DisplayName: "alice"})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}

func TestJoinLiveWaitingSession(t *testing.T) {
	svc, mock, _ := newTestService(t)

	sess := &models.Session{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		QuizTitle: "Biology Basics",
		Mode:      models.SessionModeLive,
		Status:    models.SessionStatusWaiting,
		RoomCode:  "ABC234",
		CreatedAt: testNow,
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE room_code").
		WithArgs("ABC234").
		WillReturnRows(sessionRows(sess))
	mock.ExpectExec("INSERT INTO quiz_participants").
		WillReturnResult(sqlmock.NewResult(1, 1))

	resp, err := svc.Join(context.Background(), JoinRequest{RoomCode: "abc234", DisplayName: " Alice ", StudentID: "S-100"})
	require.NoError(t, err)

	assert.Equal(t, "Alice", resp.Participant.DisplayName)
	assert.Equal(t, "S-100", resp.Participant.StudentID)
	assert.False(t, resp.Participant.IsGuest)
	assert.NotEmpty(t, resp.AuthToken)
	assert.Empty(t, resp.Questions, "live sessions reveal questions one at a time")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinSelfPacedAfterDeadlineRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	deadline := testNow.Add(-time.Minute)
	sess := &models.Session{
		ID:        uuid.New(),
		QuizID:    uuid.New(),
		Mode:      models.SessionModeSelfPaced,
		Status:    models.SessionStatusActive,
		RoomCode:  "ABC234",
		Deadline:  &deadline,
		CreatedAt: testNow.Add(-time.Hour),
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE room_code").
		WillReturnRows(sessionRows(sess))

	_, err := svc.Join(context.Background(), JoinRequest{RoomCode: "ABC234", DisplayName: "alice"})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}

func TestSubmitAnswerAfterExpiryRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	questionID := uuid.New()
	expired := testNow.Add(-time.Second)
	sess := &models.Session{
		ID:                uuid.New(),
		QuizID:            uuid.New(),
		Mode:              models.SessionModeLive,
		Status:            models.SessionStatusActive,
		RoomCode:          "ABC234",
		CurrentQuestion:   &questionID,
		QuestionExpiresAt: &expired,
		CreatedAt:         testNow.Add(-time.Hour),
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE id").
		WillReturnRows(sessionRows(sess))

	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID}
	_, err := svc.SubmitAnswer(context.Background(), participant, SubmitAnswerRequest{
		QuestionID: questionID,
		Answer:     json.RawMessage(`[0]`),
	})
	assert.ErrorIs(t, err, ErrQuestionNotOpen)
}

func TestSubmitAnswerWrongQuestionRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	openQuestion := uuid.New()
	future := testNow.Add(20 * time.Second)
	sess := &models.Session{
		ID:                uuid.New(),
		QuizID:            uuid.New(),
		Mode:              models.SessionModeLive,
		Status:            models.SessionStatusActive,
		RoomCode:          "ABC234",
		CurrentQuestion:   &openQuestion,
		QuestionExpiresAt: &future,
		CreatedAt:         testNow.Add(-time.Hour),
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE id").
		WillReturnRows(sessionRows(sess))

	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID}
	_, err := svc.SubmitAnswer(context.Background(), participant, SubmitAnswerRequest{
		QuestionID: uuid.New(), // a question that is not open
		Answer:     json.RawMessage(`[0]`),
	})
	assert.ErrorIs(t, err, ErrQuestionNotOpen)
}

func TestSubmitAnswerDuplicateRejected(t *testing.T) {
	svc, mock, _ := newTestService(t)

	questionID := uuid.New()
	future := testNow.Add(20 * time.Second)
	sess := &models.Session{
		ID:                uuid.New(),
		QuizID:            uuid.New(),
		Mode:              models.SessionModeLive,
		Status:            models.SessionStatusActive,
		RoomCode:          "ABC234",
		CurrentQuestion:   &questionID,
		QuestionExpiresAt: &future,
		CreatedAt:         testNow.Add(-time.Hour),
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE id").
		WillReturnRows(sessionRows(sess))
	mock.ExpectQuery("SELECT (.+) FROM quiz_questions WHERE id").
		WillReturnRows(questionRows(questionID, sess.QuizID))
	mock.ExpectExec("INSERT INTO quiz_answer_submissions").
		WillReturnError(&pq.Error{Code: "23505"})

	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID}
	_, err := svc.SubmitAnswer(context.Background(), participant, SubmitAnswerRequest{
		QuestionID: questionID,
		Answer:     json.RawMessage(`[0]`),
	})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestSubmitAnswerGradesAndScores(t *testing.T) {
	svc, mock, _ := newTestService(t)

	questionID := uuid.New()
	future := testNow.Add(20 * time.Second)
	sess := &models.Session{
		ID:                uuid.New(),
		QuizID:            uuid.New(),
		Mode:              models.SessionModeLive,
		Status:            models.SessionStatusActive,
		RoomCode:          "ABC234",
		CurrentQuestion:   &questionID,
		QuestionExpiresAt: &future,
		CreatedAt:         testNow.Add(-time.Hour),
	}
	mock.ExpectQuery("SELECT (.+) FROM quiz_sessions WHERE id").
		WillReturnRows(sessionRows(sess))
	mock.ExpectQuery("SELECT (.+) FROM quiz_questions WHERE id").
		WillReturnRows(questionRows(questionID, sess.QuizID))
	mock.ExpectExec("INSERT INTO quiz_answer_submissions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE quiz_participants SET score").
		WillReturnResult(sqlmock.NewResult(1, 1))

	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID}
	sub, err := svc.SubmitAnswer(context.Background(), participant, SubmitAnswerRequest{
		QuestionID: questionID,
		Answer:     json.RawMessage(`[0]`),
	})
	require.NoError(t, err)

	assert.True(t, sub.IsCorrect)
	assert.Equal(t, 10, sub.PointsEarned)
	assert.Equal(t, testNow, sub.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// questionRows builds a multiple-choice question row with correct option 0
// worth 10 points.
func questionRows(id, quizID uuid.UUID) *sqlmock.Rows {
	options, _ := json.Marshal([]string{"mercury", "venus"})
	correct, _ := json.Marshal([]int{0})
	return sqlmock.NewRows([]string{
		"id", "quiz_id", "order_index", "type", "text", "options", "correct_options",
		"correct_bool", "keywords", "explanation", "points", "time_limit_seconds",
	}).AddRow(id, quizID, 0, models.QuestionTypeMultipleChoice, "Closest planet to the sun?",
		options, correct, nil, nil, "", 10, 20)
}
