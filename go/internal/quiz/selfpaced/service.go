// Package selfpaced runs deadline-bounded sessions where each participant
// paces their own attempt. There is no shared phase machine: progress,
// navigation and submission are all per participant, and the only global
// instant is the session deadline.
package selfpaced

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// DeadlineSweepInterval is how often the watcher checks for sessions whose
// deadline has passed.
const DeadlineSweepInterval = 5 * time.Second

var (
	// ErrNoProgress is returned when a participant has no progress row.
	ErrNoProgress = errors.New("no progress for participant")

	// ErrNotSelfPaced is returned when a self-paced operation targets a
	// live session.
	ErrNotSelfPaced = errors.New("session is not self-paced")

	// ErrAlreadySubmitted is returned for mutations after final submission.
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// ErrDeadlinePassed is returned for mutations after the session
	// deadline.
	ErrDeadlinePassed = errors.New("session deadline has passed")

	// ErrNavigationNotAllowed is returned for backward navigation when the
	// session forbids it.
	ErrNavigationNotAllowed = errors.New("backward navigation is not allowed")

	// ErrQuestionIndexOutOfRange is returned for navigation past the
	// question list.
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")

	// ErrAnswersIncomplete is returned when submitting with unanswered
	// questions in a session that requires all answers.
	ErrAnswersIncomplete = errors.New("all questions must be answered before submitting")

	// ErrReviewNotAllowed is returned when the session settings forbid
	// reviewing answers.
	ErrReviewNotAllowed = errors.New("answer review is not allowed")
)

// AnswerReview pairs a question with the participant's saved answer for the
// review screen. Correct answers and explanations appear only after final
// submission.
type AnswerReview struct {
	Question     models.Question `json:"question"`
	YourAnswer   json.RawMessage `json:"your_answer,omitempty"`
	Answered     bool            `json:"answered"`
	IsCorrect    *bool           `json:"is_correct,omitempty"`
	PointsEarned *int            `json:"points_earned,omitempty"`
}

// Service owns self-paced progress, answer saving and final submission.
type Service struct {
	repo     *Repository
	sessions *session.Service
	clock    clockwork.Clock
}

// NewService creates the self-paced service.
func NewService(repo *Repository, sessions *session.Service, clock clockwork.Clock) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		clock:    clock,
	}
}

// Start creates the participant's progress row if none exists yet. Called
// at join; calling it again is a no-op returning the existing progress.
func (s *Service) Start(ctx context.Context, participant *models.Participant) (*models.SelfPacedProgress, error) {
	progress, err := s.repo.GetProgress(ctx, participant.ID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, ErrNoProgress) {
		return nil, err
	}

	progress = &models.SelfPacedProgress{
		ParticipantID: participant.ID,
		SessionID:     participant.SessionID,
		Status:        models.ProgressStatusInProgress,
	}
	if err := s.repo.CreateProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// Overview returns the participant's progress with the answered-question
// set filled in from their saved submissions.
func (s *Service) Overview(ctx context.Context, participant *models.Participant) (*models.SelfPacedProgress, error) {
	progress, err := s.repo.GetProgress(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	subs, err := s.sessions.Repo().ListSubmissionsByParticipant(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	progress.AnsweredQuestionIDs = make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		progress.AnsweredQuestionIDs = append(progress.AnsweredQuestionIDs, sub.QuestionID)
	}
	return progress, nil
}

// Navigate moves the participant's question pointer. Forward movement is
// always allowed; moving backward requires the session to permit it.
func (s *Service) Navigate(ctx context.Context, participant *models.Participant, index int) error {
	sess, progress, err := s.openAttempt(ctx, participant)
	if err != nil {
		return err
	}
	questions, err := s.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(questions) {
		return ErrQuestionIndexOutOfRange
	}
	if index < progress.CurrentQuestionIndex && !sess.Settings.AllowNavigation {
		return ErrNavigationNotAllowed
	}
	return s.repo.UpdateCurrentQuestion(ctx, participant.ID, index)
}

// SaveAnswer upserts the participant's answer to a question. Answers stay
// mutable until final submission; each save replaces the previous one and
// re-grades.
func (s *Service) SaveAnswer(ctx context.Context, participant *models.Participant, req session.SubmitAnswerRequest) error {
	sess, _, err := s.openAttempt(ctx, participant)
	if err != nil {
		return err
	}
	question, err := s.sessions.Repo().GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return err
	}
	if question.QuizID != sess.QuizID {
		return session.ErrQuestionNotOpen
	}

	correct, points := session.Grade(*question, req.Answer)
	return s.sessions.Repo().UpsertSubmission(ctx, &models.AnswerSubmission{
		ID:            uuid.New(),
		SessionID:     sess.ID,
		QuestionID:    question.ID,
		ParticipantID: participant.ID,
		Answer:        req.Answer,
		TimeTakenMs:   req.TimeTakenMs,
		IsCorrect:     correct,
		PointsEarned:  points,
		SubmittedAt:   s.clock.Now().UTC(),
	})
}

// Review returns the participant's answers alongside the questions. Before
// submission it requires the review setting and hides grading; after
// submission it requires result feedback and includes correctness, points,
// correct answers and explanations.
func (s *Service) Review(ctx context.Context, participant *models.Participant) ([]AnswerReview, error) {
	sess, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode != models.SessionModeSelfPaced {
		return nil, ErrNotSelfPaced
	}
	progress, err := s.repo.GetProgress(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	submitted := progress.Status == models.ProgressStatusSubmitted
	if submitted && !sess.Settings.ShowResultFeedback {
		return nil, ErrReviewNotAllowed
	}
	if !submitted && !sess.Settings.AllowReviewBeforeSubmit {
		return nil, ErrReviewNotAllowed
	}

	questions, err := s.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return nil, err
	}
	subs, err := s.sessions.Repo().ListSubmissionsByParticipant(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uuid.UUID]models.AnswerSubmission, len(subs))
	for _, sub := range subs {
		byQuestion[sub.QuestionID] = sub
	}

	reviews := make([]AnswerReview, 0, len(questions))
	for _, q := range questions {
		review := AnswerReview{Question: q}
		if !submitted {
			review.Question = q.Sanitized()
		}
		if sub, ok := byQuestion[q.ID]; ok {
			review.Answered = true
			review.YourAnswer = sub.Answer
			if submitted && q.Type.Graded() {
				correct := sub.IsCorrect
				points := sub.PointsEarned
				review.IsCorrect = &correct
				review.PointsEarned = &points
			}
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// Submit finalizes the participant's attempt. The operation is idempotent:
// a repeat submit returns the stored result unchanged. When the session
// requires all answers, submitting with gaps fails instead.
func (s *Service) Submit(ctx context.Context, participant *models.Participant) (*models.FinalResult, error) {
	sess, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode != models.SessionModeSelfPaced {
		return nil, ErrNotSelfPaced
	}
	progress, err := s.repo.GetProgress(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.ProgressStatusSubmitted {
		return s.finalResult(ctx, sess, progress)
	}

	questions, err := s.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return nil, err
	}
	subs, err := s.sessions.Repo().ListSubmissionsByParticipant(ctx, participant.ID)
	if err != nil {
		return nil, err
	}
	if sess.Settings.RequireAllAnswers && len(subs) < len(questions) {
		return nil, ErrAnswersIncomplete
	}

	return s.finalize(ctx, sess, participant.ID, questions, subs, false)
}

// finalize scores an attempt and marks it submitted, first-wins. When a
// manual submit races the deadline auto-submit the loser re-reads the
// stored result so both callers see the same outcome.
func (s *Service) finalize(ctx context.Context, sess *models.Session, participantID uuid.UUID, questions []models.Question, subs []models.AnswerSubmission, auto bool) (*models.FinalResult, error) {
	var score, correctCount int
	for _, sub := range subs {
		if sub.IsCorrect {
			correctCount++
		}
		score += sub.PointsEarned
	}

	now := s.clock.Now().UTC()
	won, err := s.repo.MarkSubmitted(ctx, participantID, score, now, auto)
	if err != nil {
		return nil, err
	}
	if !won {
		progress, err := s.repo.GetProgress(ctx, participantID)
		if err != nil {
			return nil, err
		}
		return s.finalResult(ctx, sess, progress)
	}
	if score > 0 {
		if err := s.sessions.Repo().AddParticipantScore(ctx, participantID, score); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("participant_id", participantID.String()).
		Int("score", score).
		Bool("auto_submitted", auto).
		Msg("Self-paced attempt submitted")
	return buildResult(participantID, questions, score, correctCount, auto, now), nil
}

// finalResult rebuilds the stored result for an already-submitted attempt.
func (s *Service) finalResult(ctx context.Context, sess *models.Session, progress *models.SelfPacedProgress) (*models.FinalResult, error) {
	questions, err := s.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return nil, err
	}
	subs, err := s.sessions.Repo().ListSubmissionsByParticipant(ctx, progress.ParticipantID)
	if err != nil {
		return nil, err
	}
	var correctCount int
	for _, sub := range subs {
		if sub.IsCorrect {
			correctCount++
		}
	}
	submittedAt := s.clock.Now().UTC()
	if progress.SubmittedAt != nil {
		submittedAt = *progress.SubmittedAt
	}
	return buildResult(progress.ParticipantID, questions, progress.Score, correctCount, progress.AutoSubmitted, submittedAt), nil
}

// openAttempt loads the session and progress and verifies the attempt is
// still mutable: self-paced, not submitted, deadline not passed.
func (s *Service) openAttempt(ctx context.Context, participant *models.Participant) (*models.Session, *models.SelfPacedProgress, error) {
	sess, err := s.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Mode != models.SessionModeSelfPaced {
		return nil, nil, ErrNotSelfPaced
	}
	progress, err := s.repo.GetProgress(ctx, participant.ID)
	if err != nil {
		return nil, nil, err
	}
	if progress.Status == models.ProgressStatusSubmitted {
		return nil, nil, ErrAlreadySubmitted
	}
	if sess.Deadline != nil && !s.clock.Now().Before(*sess.Deadline) {
		return nil, nil, ErrDeadlinePassed
	}
	return sess, progress, nil
}

func buildResult(participantID uuid.UUID, questions []models.Question, score, correctCount int, auto bool, submittedAt time.Time) *models.FinalResult {
	var totalPoints int
	for _, q := range questions {
		if q.Type.Graded() {
			totalPoints += q.Points
		}
	}
	result := &models.FinalResult{
		ParticipantID:       participantID,
		FinalScore:          score,
		TotalPossiblePoints: totalPoints,
		CorrectCount:        correctCount,
		TotalQuestions:      len(questions),
		AutoSubmitted:       auto,
		SubmittedAt:         submittedAt,
	}
	if totalPoints > 0 {
		result.Percentage = float64(score) / float64(totalPoints) * 100
	}
	return result
}
