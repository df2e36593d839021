package roster

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	students []Student
	err      error
}

func (f *fakeDirectory) FetchStudents(_ context.Context, _ uuid.UUID) ([]Student, error) {
	return f.students, f.err
}

func newTestService(t *testing.T, directory ClassDirectory) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(NewRepository(db), directory, clockwork.NewFakeClockAt(testNow)), mock
}

func classSession() *models.Session {
	classID := uuid.New()
	return &models.Session{
		ID:      uuid.New(),
		QuizID:  uuid.New(),
		Mode:    models.SessionModeLive,
		Status:  models.SessionStatusWaiting,
		ClassID: &classID,
	}
}

func expectRosterCount(mock sqlmock.Sqlmock, n int) {
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
}

func rosterEntryRows(sessionID uuid.UUID, schoolID, name string, joined bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_id", "student_school_id", "student_name", "joined", "joined_at", "participant_id",
	}).AddRow(uuid.New(), sessionID, schoolID, name, joined, nil, nil)
}

func outsiderRows(o *models.OutsiderRecord) *sqlmock.Rows {
	var assigned interface{}
	if o.AssignedStudentID != nil {
		assigned = *o.AssignedStudentID
	}
	return sqlmock.NewRows([]string{
		"id", "session_id", "participant_id", "display_name", "supplied_student_id",
		"detection_reason", "flagged", "teacher_notes", "assigned_student_id", "created_at",
	}).AddRow(o.ID, o.SessionID, o.ParticipantID, o.DisplayName, o.SuppliedStudentID,
		o.DetectionReason, o.Flagged, nil, assigned, o.CreatedAt)
}

func TestMatchJoinNoClassSet(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	sess.ClassID = nil
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Alice"}

	mock.ExpectExec("INSERT INTO quiz_outsiders").
		WithArgs(sqlmock.AnyArg(), sess.ID, participant.ID, "Alice", "",
			models.DetectionReasonNoClassSet, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinRosterNotSynced(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Alice"}

	expectRosterCount(mock, 0)
	mock.ExpectExec("INSERT INTO quiz_outsiders").
		WithArgs(sqlmock.AnyArg(), sess.ID, participant.ID, "Alice", "S-1",
			models.DetectionReasonRosterNotSynced, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, "S-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinByStudentID(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Alice"}

	expectRosterCount(mock, 5)
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND student_school_id").
		WillReturnRows(rosterEntryRows(sess.ID, "S-1", "Alice Smith", false))
	mock.ExpectExec("UPDATE quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, "S-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinStudentIDNotInClass(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Alice"}

	expectRosterCount(mock, 5)
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND student_school_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO quiz_outsiders").
		WithArgs(sqlmock.AnyArg(), sess.ID, participant.ID, "Alice", "S-99",
			models.DetectionReasonNotInClass, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, "S-99"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinAlreadyClaimedBecomesOutsider(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Alice"}

	expectRosterCount(mock, 5)
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND student_school_id").
		WillReturnRows(rosterEntryRows(sess.ID, "S-1", "Alice Smith", true))
	// First participant already holds the claim; the guarded update is a no-op.
	mock.ExpectExec("UPDATE quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO quiz_outsiders").
		WithArgs(sqlmock.AnyArg(), sess.ID, participant.ID, "Alice", "S-1",
			models.DetectionReasonNotInClass, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, "S-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinGuestByName(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "alice smith", IsGuest: true}

	expectRosterCount(mock, 5)
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND LOWER").
		WillReturnRows(rosterEntryRows(sess.ID, "S-1", "Alice Smith", false))
	mock.ExpectExec("UPDATE quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchJoinGuestNameNotFound(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sess := classSession()
	participant := &models.Participant{ID: uuid.New(), SessionID: sess.ID, DisplayName: "Zed", IsGuest: true}

	expectRosterCount(mock, 5)
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND LOWER").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO quiz_outsiders").
		WithArgs(sqlmock.AnyArg(), sess.ID, participant.ID, "Zed", "",
			models.DetectionReasonStudentNotFound, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.MatchJoin(context.Background(), sess, participant, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRequiresClass(t *testing.T) {
	svc, _ := newTestService(t, &fakeDirectory{})

	sess := classSession()
	sess.ClassID = nil
	assert.ErrorIs(t, svc.Sync(context.Background(), sess), ErrNoClassSet)
}

func TestSyncReplacesRoster(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{students: []Student{
		{SchoolID: "S-1", Name: "Alice Smith"},
		{SchoolID: "S-2", Name: "Bob Jones"},
	}})

	sess := classSession()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Sync(context.Background(), sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOutsiderAlreadyResolved(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	assigned := "S-1"
	outsider := &models.OutsiderRecord{
		ID:                uuid.New(),
		SessionID:         uuid.New(),
		ParticipantID:     uuid.New(),
		DisplayName:       "Alice",
		DetectionReason:   models.DetectionReasonStudentNotFound,
		AssignedStudentID: &assigned,
		CreatedAt:         testNow,
	}
	mock.ExpectQuery("FROM quiz_outsiders WHERE id").
		WillReturnRows(outsiderRows(outsider))

	_, err := svc.AssignOutsider(context.Background(), outsider.ID, "S-2")
	assert.ErrorIs(t, err, ErrOutsiderAlreadyResolved)
}

func TestAssignOutsiderRefusesJoinedStudent(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	outsider := &models.OutsiderRecord{
		ID:              uuid.New(),
		SessionID:       uuid.New(),
		ParticipantID:   uuid.New(),
		DisplayName:     "Alice",
		DetectionReason: models.DetectionReasonStudentNotFound,
		CreatedAt:       testNow,
	}
	mock.ExpectQuery("FROM quiz_outsiders WHERE id").
		WillReturnRows(outsiderRows(outsider))
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND student_school_id").
		WillReturnRows(rosterEntryRows(outsider.SessionID, "S-1", "Alice Smith", true))

	_, err := svc.AssignOutsider(context.Background(), outsider.ID, "S-1")
	assert.ErrorIs(t, err, ErrRosterStudentAlreadyJoined)
}

func TestAssignOutsiderClaimsStudent(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	outsider := &models.OutsiderRecord{
		ID:              uuid.New(),
		SessionID:       uuid.New(),
		ParticipantID:   uuid.New(),
		DisplayName:     "Alice",
		DetectionReason: models.DetectionReasonStudentNotFound,
		CreatedAt:       testNow,
	}
	mock.ExpectQuery("FROM quiz_outsiders WHERE id").
		WillReturnRows(outsiderRows(outsider))
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 AND student_school_id").
		WillReturnRows(rosterEntryRows(outsider.SessionID, "S-1", "Alice Smith", false))
	mock.ExpectExec("UPDATE quiz_roster_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE quiz_outsiders SET assigned_student_id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resolvedOutsider := *outsider
	assigned := "S-1"
	resolvedOutsider.AssignedStudentID = &assigned
	mock.ExpectQuery("FROM quiz_outsiders WHERE id").
		WillReturnRows(outsiderRows(&resolvedOutsider))

	got, err := svc.AssignOutsider(context.Background(), outsider.ID, "S-1")
	require.NoError(t, err)
	require.NotNil(t, got.AssignedStudentID)
	assert.Equal(t, "S-1", *got.AssignedStudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceCountsPresent(t *testing.T) {
	svc, mock := newTestService(t, &fakeDirectory{})

	sessionID := uuid.New()
	rosterRows := sqlmock.NewRows([]string{
		"id", "session_id", "student_school_id", "student_name", "joined", "joined_at", "participant_id",
	}).
		AddRow(uuid.New(), sessionID, "S-1", "Alice Smith", true, testNow, uuid.New()).
		AddRow(uuid.New(), sessionID, "S-2", "Bob Jones", false, nil, nil).
		AddRow(uuid.New(), sessionID, "S-3", "Cara Lane", true, testNow, uuid.New())
	mock.ExpectQuery("FROM quiz_roster_entries WHERE session_id = \\$1 ORDER BY student_name").
		WillReturnRows(rosterRows)

	outsider := &models.OutsiderRecord{
		ID:              uuid.New(),
		SessionID:       sessionID,
		ParticipantID:   uuid.New(),
		DisplayName:     "Mystery Kid",
		DetectionReason: models.DetectionReasonStudentNotFound,
		CreatedAt:       testNow,
	}
	mock.ExpectQuery("FROM quiz_outsiders WHERE session_id").
		WillReturnRows(outsiderRows(outsider))

	att, err := svc.Attendance(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Equal(t, 3, att.Expected)
	assert.Equal(t, 2, att.Present)
	assert.Len(t, att.Outsiders, 1)
}
