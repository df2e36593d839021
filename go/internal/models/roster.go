package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectionReason explains why a joining participant could not be matched
// against the session roster.
type DetectionReason string

const (
	DetectionReasonNotInClass      DetectionReason = "not_in_class"
	DetectionReasonStudentNotFound DetectionReason = "student_not_found"
	DetectionReasonRosterNotSynced DetectionReason = "roster_not_synced"
	DetectionReasonNoClassSet      DetectionReason = "no_class_set"
)

// RosterEntry is one expected student of a class-linked session.
// Joined=true implies a matching Participant exists.
type RosterEntry struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	StudentSchoolID string     `json:"student_school_id"`
	StudentName     string     `json:"student_name"`
	Joined          bool       `json:"joined"`
	JoinedAt        *time.Time `json:"joined_at,omitempty"`
	ParticipantID   *uuid.UUID `json:"participant_id,omitempty"`
}

// OutsiderRecord is a joined participant without a roster match.
// AssignedStudentID is terminal once set: the outsider has been resolved to
// a roster student and no re-assignment path exists.
type OutsiderRecord struct {
	ID                uuid.UUID       `json:"id"`
	SessionID         uuid.UUID       `json:"session_id"`
	ParticipantID     uuid.UUID       `json:"participant_id"`
	DisplayName       string          `json:"display_name"`
	SuppliedStudentID string          `json:"supplied_student_id,omitempty"`
	DetectionReason   DetectionReason `json:"detection_reason"`
	Flagged           bool            `json:"flagged"`
	TeacherNotes      string          `json:"teacher_notes,omitempty"`
	AssignedStudentID *string         `json:"assigned_student_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Resolved reports whether this outsider has been assigned to a roster
// student.
func (o *OutsiderRecord) Resolved() bool {
	return o.AssignedStudentID != nil
}
