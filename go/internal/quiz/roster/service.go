// Package roster reconciles joining participants against a class roster.
// Matched joins mark the roster student present; unmatched joins produce an
// outsider record carrying the reason the match failed, which the host can
// flag, annotate or assign to a roster student after the fact.
package roster

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

var (
	// ErrRosterEntryNotFound is returned when a student id resolves to no
	// roster entry.
	ErrRosterEntryNotFound = errors.New("roster entry not found")

	// ErrOutsiderNotFound is returned when an outsider id resolves to
	// nothing.
	ErrOutsiderNotFound = errors.New("outsider record not found")

	// ErrOutsiderAlreadyResolved is returned when assigning an outsider
	// that has already been assigned. Assignment is terminal.
	ErrOutsiderAlreadyResolved = errors.New("outsider already assigned to a student")

	// ErrRosterStudentAlreadyJoined is returned when assigning an outsider
	// to a roster student who already has a participant.
	ErrRosterStudentAlreadyJoined = errors.New("roster student already joined")

	// ErrNoClassSet is returned for roster operations on a session without
	// a class.
	ErrNoClassSet = errors.New("session has no class set")
)

// Student is one class member from the school directory.
type Student struct {
	SchoolID string
	Name     string
}

// ClassDirectory looks up class membership in the school system.
type ClassDirectory interface {
	FetchStudents(ctx context.Context, classID uuid.UUID) ([]Student, error)
}

// Attendance is the host's roster view: who is expected, who has joined,
// and who joined without matching.
type Attendance struct {
	SessionID uuid.UUID               `json:"session_id"`
	Expected  int                     `json:"expected"`
	Present   int                     `json:"present"`
	Roster    []models.RosterEntry    `json:"roster"`
	Outsiders []models.OutsiderRecord `json:"outsiders"`
}

// Service owns roster sync, join reconciliation and outsider handling.
type Service struct {
	repo      *Repository
	directory ClassDirectory
	clock     clockwork.Clock
}

// NewService creates the roster service. directory may be nil when no
// school system is configured; joins then reconcile as roster_not_synced.
func NewService(repo *Repository, directory ClassDirectory, clock clockwork.Clock) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		clock:     clock,
	}
}

// Sync pulls the class membership into the session roster. Safe to repeat:
// students who already joined keep their joined state, and roster entries
// no longer in the class are dropped unless joined.
func (s *Service) Sync(ctx context.Context, session *models.Session) error {
	if session.ClassID == nil {
		return ErrNoClassSet
	}
	if s.directory == nil {
		return errors.New("no class directory configured")
	}

	students, err := s.directory.FetchStudents(ctx, *session.ClassID)
	if err != nil {
		return err
	}
	entries := make([]models.RosterEntry, 0, len(students))
	for _, st := range students {
		entries = append(entries, models.RosterEntry{
			ID:              uuid.New(),
			SessionID:       session.ID,
			StudentSchoolID: st.SchoolID,
			StudentName:     st.Name,
		})
	}
	if err := s.repo.ReplaceRoster(ctx, session.ID, entries); err != nil {
		return err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("class_id", session.ClassID.String()).
		Int("students", len(entries)).
		Msg("Roster synced")
	return nil
}

// MatchJoin reconciles a new participant against the session roster.
// A supplied student id is matched against school ids; a guest is matched
// by exact name. Every failure mode produces an outsider record instead of
// an error, so reconciliation never blocks the join itself.
func (s *Service) MatchJoin(ctx context.Context, session *models.Session, participant *models.Participant, suppliedStudentID string) error {
	if session.ClassID == nil {
		return s.recordOutsider(ctx, session, participant, suppliedStudentID, models.DetectionReasonNoClassSet)
	}

	count, err := s.repo.CountRoster(ctx, session.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		return s.recordOutsider(ctx, session, participant, suppliedStudentID, models.DetectionReasonRosterNotSynced)
	}

	if suppliedStudentID != "" {
		return s.matchByStudentID(ctx, session, participant, suppliedStudentID)
	}
	return s.matchByName(ctx, session, participant)
}

func (s *Service) matchByStudentID(ctx context.Context, session *models.Session, participant *models.Participant, studentID string) error {
	entry, err := s.repo.GetRosterEntry(ctx, session.ID, studentID)
	if errors.Is(err, ErrRosterEntryNotFound) {
		return s.recordOutsider(ctx, session, participant, studentID, models.DetectionReasonNotInClass)
	}
	if err != nil {
		return err
	}
	return s.claim(ctx, session, participant, entry, studentID)
}

func (s *Service) matchByName(ctx context.Context, session *models.Session, participant *models.Participant) error {
	name := strings.TrimSpace(participant.DisplayName)
	entry, err := s.repo.GetRosterEntryByName(ctx, session.ID, name)
	if errors.Is(err, ErrRosterEntryNotFound) {
		return s.recordOutsider(ctx, session, participant, "", models.DetectionReasonStudentNotFound)
	}
	if err != nil {
		return err
	}
	return s.claim(ctx, session, participant, entry, "")
}

// claim marks the roster entry joined. If another participant already
// claimed the student, the newcomer becomes an outsider rather than
// displacing them.
func (s *Service) claim(ctx context.Context, session *models.Session, participant *models.Participant, entry *models.RosterEntry, suppliedStudentID string) error {
	claimed, err := s.repo.ClaimRosterEntry(ctx, session.ID, entry.StudentSchoolID, participant.ID, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !claimed {
		return s.recordOutsider(ctx, session, participant, suppliedStudentID, models.DetectionReasonNotInClass)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("participant_id", participant.ID.String()).
		Str("student_school_id", entry.StudentSchoolID).
		Msg("Participant matched to roster")
	return nil
}

func (s *Service) recordOutsider(ctx context.Context, session *models.Session, participant *models.Participant, suppliedStudentID string, reason models.DetectionReason) error {
	record := &models.OutsiderRecord{
		ID:                uuid.New(),
		SessionID:         session.ID,
		ParticipantID:     participant.ID,
		DisplayName:       participant.DisplayName,
		SuppliedStudentID: suppliedStudentID,
		DetectionReason:   reason,
		CreatedAt:         s.clock.Now().UTC(),
	}
	if err := s.repo.CreateOutsider(ctx, record); err != nil {
		return err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("participant_id", participant.ID.String()).
		Str("reason", string(reason)).
		Msg("Outsider recorded")
	return nil
}

// Attendance builds the host's roster view for a session.
func (s *Service) Attendance(ctx context.Context, sessionID uuid.UUID) (*Attendance, error) {
	entries, err := s.repo.ListRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	outsiders, err := s.repo.ListOutsiders(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	present := 0
	for _, e := range entries {
		if e.Joined {
			present++
		}
	}
	return &Attendance{
		SessionID: sessionID,
		Expected:  len(entries),
		Present:   present,
		Roster:    entries,
		Outsiders: outsiders,
	}, nil
}

// SetOutsiderFlag flags or unflags an outsider with optional teacher notes.
func (s *Service) SetOutsiderFlag(ctx context.Context, outsiderID uuid.UUID, flagged bool, notes string) (*models.OutsiderRecord, error) {
	if _, err := s.repo.GetOutsider(ctx, outsiderID); err != nil {
		return nil, err
	}
	if err := s.repo.SetOutsiderFlag(ctx, outsiderID, flagged, notes); err != nil {
		return nil, err
	}
	return s.repo.GetOutsider(ctx, outsiderID)
}

// AssignOutsider resolves an outsider to a roster student. The assignment
// is terminal and refuses to displace a student who already joined.
func (s *Service) AssignOutsider(ctx context.Context, outsiderID uuid.UUID, studentSchoolID string) (*models.OutsiderRecord, error) {
	outsider, err := s.repo.GetOutsider(ctx, outsiderID)
	if err != nil {
		return nil, err
	}
	if outsider.Resolved() {
		return nil, ErrOutsiderAlreadyResolved
	}

	entry, err := s.repo.GetRosterEntry(ctx, outsider.SessionID, studentSchoolID)
	if err != nil {
		return nil, err
	}
	if entry.Joined {
		return nil, ErrRosterStudentAlreadyJoined
	}

	claimed, err := s.repo.ClaimRosterEntry(ctx, outsider.SessionID, studentSchoolID, outsider.ParticipantID, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRosterStudentAlreadyJoined
	}
	resolved, err := s.repo.ResolveOutsider(ctx, outsiderID, studentSchoolID)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, ErrOutsiderAlreadyResolved
	}

	log.Info().
		Str("session_id", outsider.SessionID.String()).
		Str("outsider_id", outsiderID.String()).
		Str("student_school_id", studentSchoolID).
		Msg("Outsider assigned to roster student")
	return s.repo.GetOutsider(ctx, outsiderID)
}
