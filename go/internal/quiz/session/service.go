package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/bus"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/timesync"
)

// roomCodeAlphabet omits characters that read ambiguously on a projector.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// RosterMatcher records a join against a class roster, producing either a
// roster match or an outsider record. A failure here never blocks the join.
type RosterMatcher interface {
	MatchJoin(ctx context.Context, session *models.Session, participant *models.Participant, suppliedStudentID string) error
}

// Service owns session lifecycle, joins and live answer submission.
type Service struct {
	repo   *Repository
	bus    bus.Bus
	roster RosterMatcher
	clock  clockwork.Clock
}

// NewService creates the session service. roster may be nil when no class
// directory is configured.
func NewService(repo *Repository, eventBus bus.Bus, roster RosterMatcher, clock clockwork.Clock) *Service {
	return &Service{
		repo:   repo,
		bus:    eventBus,
		roster: roster,
		clock:  clock,
	}
}

// Repo exposes the underlying repository to sibling services.
func (s *Service) Repo() *Repository {
	return s.repo
}

// CreateSession creates a session for a quiz. Live sessions open in the
// waiting room; self-paced sessions are active immediately since each
// participant paces their own attempt.
func (s *Service) CreateSession(ctx context.Context, quiz *models.Quiz, req CreateSessionRequest) (*models.Session, error) {
	now := s.clock.Now().UTC()

	code, err := generateRoomCode()
	if err != nil {
		return nil, fmt.Errorf("generate room code: %w", err)
	}

	session := &models.Session{
		ID:        uuid.New(),
		QuizID:    quiz.ID,
		QuizTitle: quiz.Title,
		Mode:      req.Mode,
		Status:    models.SessionStatusWaiting,
		RoomCode:  code,
		ClassID:   req.ClassID,
		Deadline:  req.Deadline,
		Settings:  req.Settings,
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if session.Mode == models.SessionModeSelfPaced {
		if err := s.repo.UpdateSessionStatus(ctx, session.ID, models.SessionStatusActive, now); err != nil {
			return nil, err
		}
		session.Status = models.SessionStatusActive
		session.StartedAt = &now
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("quiz_id", quiz.ID.String()).
		Str("mode", string(session.Mode)).
		Str("room_code", session.RoomCode).
		Msg("Session created")
	return session, nil
}

// GetSession fetches a session by id.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// GetLatestSessionByQuiz fetches the newest session for a quiz, letting a
// host reopen the dashboard of the session they just created.
func (s *Service) GetLatestSessionByQuiz(ctx context.Context, quizID uuid.UUID) (*models.Session, error) {
	return s.repo.GetLatestSessionByQuiz(ctx, quizID)
}

// ListParticipants fetches a session's participants in join order.
func (s *Service) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return s.repo.ListParticipants(ctx, sessionID)
}

// AuthenticateParticipant resolves a participant from a bearer token.
func (s *Service) AuthenticateParticipant(ctx context.Context, token string) (*models.Participant, error) {
	if token == "" {
		return nil, sql.ErrNoRows
	}
	return s.repo.GetParticipantByToken(ctx, token)
}

// Join validates a join attempt against the room code, creates the
// participant and reconciles it with the class roster when one is set.
// Identity is fixed at join time and never changes afterwards.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResponse, error) {
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, ErrMissingDisplayName
	}

	session, err := s.repo.GetSessionByRoomCode(ctx, strings.ToUpper(strings.TrimSpace(req.RoomCode)))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrRoomCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	if !joinable(session, s.clock) {
		return nil, ErrSessionNotJoinable
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate participant token: %w", err)
	}

	studentID := strings.TrimSpace(req.StudentID)
	participant := &models.Participant{
		ID:          uuid.New(),
		SessionID:   session.ID,
		DisplayName: displayName,
		StudentID:   studentID,
		IsGuest:     studentID == "",
		Token:       token,
		JoinedAt:    s.clock.Now().UTC(),
	}
	if err := s.repo.CreateParticipant(ctx, participant); err != nil {
		return nil, err
	}

	if s.roster != nil {
		if err := s.roster.MatchJoin(ctx, session, participant, studentID); err != nil {
			log.Warn().Err(err).
				Str("session_id", session.ID.String()).
				Str("participant_id", participant.ID.String()).
				Msg("Roster reconciliation failed, participant joined unmatched")
		}
	}

	resp := &JoinResponse{
		Session:     session,
		Participant: participant,
		AuthToken:   token,
	}
	if session.Mode == models.SessionModeSelfPaced {
		questions, err := s.repo.ListQuestions(ctx, session.QuizID)
		if err != nil {
			return nil, err
		}
		resp.Questions = sanitizeQuestions(questions)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("participant_id", participant.ID.String()).
		Bool("is_guest", participant.IsGuest).
		Msg("Participant joined")
	return resp, nil
}

// SubmitAnswer records a live-mode answer. The open question and its expiry
// are checked server-side so a client with a skewed clock cannot submit past
// the cutoff. Grading is authoritative here; the result event is targeted at
// the submitting participant only.
func (s *Service) SubmitAnswer(ctx context.Context, participant *models.Participant, req SubmitAnswerRequest) (*models.AnswerSubmission, error) {
	session, err := s.repo.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}
	if session.CurrentQuestion == nil || *session.CurrentQuestion != req.QuestionID {
		return nil, ErrQuestionNotOpen
	}
	now := s.clock.Now().UTC()
	if session.QuestionExpiresAt != nil && timesync.Expired(*session.QuestionExpiresAt, now) {
		return nil, ErrQuestionNotOpen
	}

	question, err := s.repo.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	correct, points := Grade(*question, req.Answer)
	submission := &models.AnswerSubmission{
		ID:            uuid.New(),
		SessionID:     session.ID,
		QuestionID:    question.ID,
		ParticipantID: participant.ID,
		Answer:        req.Answer,
		TimeTakenMs:   req.TimeTakenMs,
		IsCorrect:     correct,
		PointsEarned:  points,
		SubmittedAt:   now,
	}
	if err := s.repo.InsertSubmission(ctx, submission); err != nil {
		return nil, err
	}
	if points > 0 {
		if err := s.repo.AddParticipantScore(ctx, participant.ID, points); err != nil {
			return nil, err
		}
	}

	payload := events.AnswerSubmittedPayload{QuestionID: question.ID.String()}
	if session.Settings.ShowResultFeedback && question.Type.Graded() {
		payload.Result = &models.CooldownFeedback{
			IsCorrect:    correct,
			PointsEarned: points,
		}
	}
	evt, err := events.NewForParticipant(session.ID, participant.ID, events.EventTypeAnswerSubmitted, now, payload)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to publish answer_submitted event")
	}
	return submission, nil
}

// Analytics aggregates per-question results for the host dashboard.
func (s *Service) Analytics(ctx context.Context, sessionID uuid.UUID) (*Analytics, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListSubmissionsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uuid.UUID]*AnalyticsQuestion, len(questions))
	result := &Analytics{
		SessionID:        sessionID,
		ParticipantCount: len(participants),
		Questions:        make([]AnalyticsQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		result.Questions = append(result.Questions, AnalyticsQuestion{
			QuestionID: q.ID,
			OrderIndex: q.OrderIndex,
			Text:       q.Text,
		})
		byQuestion[q.ID] = &result.Questions[len(result.Questions)-1]
	}

	for _, sub := range submissions {
		aq, ok := byQuestion[sub.QuestionID]
		if !ok {
			continue
		}
		aq.Submissions++
		if sub.IsCorrect {
			aq.CorrectCount++
		}
	}
	for i := range result.Questions {
		if result.Questions[i].Submissions > 0 {
			result.Questions[i].CorrectRate = float64(result.Questions[i].CorrectCount) / float64(result.Questions[i].Submissions)
		}
	}

	var totalScore int
	for _, p := range participants {
		totalScore += p.Score
	}
	if len(participants) > 0 {
		result.AverageScore = float64(totalScore) / float64(len(participants))
	}
	return result, nil
}

func joinable(session *models.Session, clock clockwork.Clock) bool {
	switch session.Mode {
	case models.SessionModeLive:
		return session.Status == models.SessionStatusWaiting || session.Status == models.SessionStatusActive
	case models.SessionModeSelfPaced:
		if session.Status != models.SessionStatusActive {
			return false
		}
		return session.Deadline == nil || clock.Now().Before(*session.Deadline)
	}
	return false
}

func sanitizeQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Sanitized()
	}
	return out
}

func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}

func generateToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
