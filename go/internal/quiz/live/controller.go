// Package live drives the host-paced flow of a live session: one open
// question at a time, a cooldown between questions, and either automatic or
// host-triggered advancement. All phase deadlines run on server-side
// one-shot timers; clients only render countdowns toward the absolute
// instants broadcast with each phase event.
package live

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/bus"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/leaderboard"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

// DefaultQuestionSeconds applies when a question has no time limit of its
// own.
const DefaultQuestionSeconds = 30

// LeaderboardSize caps how many entries a leaderboard broadcast carries.
const LeaderboardSize = 10

var (
	// ErrNotLiveSession is returned when a live operation targets a
	// self-paced session.
	ErrNotLiveSession = errors.New("session is not a live session")

	// ErrSessionNotStartable is returned when starting a session that is
	// not in the waiting room.
	ErrSessionNotStartable = errors.New("session cannot be started")

	// ErrNoOpenQuestion is returned when ending or advancing with no
	// question phase in progress.
	ErrNoOpenQuestion = errors.New("no question in progress")
)

type phase string

const (
	phaseQuestion phase = "question"
	phaseCooldown phase = "cooldown"
)

type timerKey struct {
	sessionID uuid.UUID
	phase     phase
}

// sessionState is the controller's in-memory view of one running session.
// The database stays authoritative for the open question and its expiry;
// this caches the question list and tracks the cooldown phase, which only
// exists between questions and is never persisted. mu serializes phase
// transitions, which arrive concurrently from host requests and timer
// firings.
type sessionState struct {
	mu           sync.Mutex
	questions    []models.Question
	currentIndex int
	inCooldown   bool
	cooldownEnds *time.Time // nil while held for manual advance
}

// Controller runs the live phase machine for every active live session in
// this process.
type Controller struct {
	sessions *session.Service
	bus      bus.Bus
	clock    clockwork.Clock

	activeTimersMu sync.Mutex
	activeTimers   map[timerKey]clockwork.Timer

	statesMu sync.Mutex
	states   map[uuid.UUID]*sessionState
}

// NewController creates a live session controller.
func NewController(sessions *session.Service, eventBus bus.Bus, clock clockwork.Clock) *Controller {
	return &Controller{
		sessions:     sessions,
		bus:          eventBus,
		clock:        clock,
		activeTimers: make(map[timerKey]clockwork.Timer),
		states:       make(map[uuid.UUID]*sessionState),
	}
}

// StartSession moves a waiting live session to active and opens the first
// question.
func (c *Controller) StartSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Mode != models.SessionModeLive {
		return ErrNotLiveSession
	}
	if sess.Status != models.SessionStatusWaiting {
		return ErrSessionNotStartable
	}

	questions, err := c.sessions.Repo().ListQuestions(ctx, sess.QuizID)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("quiz %s has no questions", sess.QuizID)
	}

	now := c.clock.Now().UTC()
	if err := c.sessions.Repo().UpdateSessionStatus(ctx, sessionID, models.SessionStatusActive, now); err != nil {
		return err
	}

	c.statesMu.Lock()
	c.states[sessionID] = &sessionState{questions: questions, currentIndex: -1}
	c.statesMu.Unlock()

	c.publish(ctx, sessionID, events.EventTypeSessionStarted, events.SessionStartedPayload{
		SessionID:      sessionID.String(),
		StartedAt:      now,
		TotalQuestions: len(questions),
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Int("total_questions", len(questions)).
		Msg("Live session started")

	return c.startQuestion(ctx, sessionID, 0)
}

// EndQuestion closes the open question early, before its timer expires.
func (c *Controller) EndQuestion(ctx context.Context, sessionID uuid.UUID) error {
	state := c.state(sessionID)
	if state == nil {
		return ErrNoOpenQuestion
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	c.cancelTimer(timerKey{sessionID: sessionID, phase: phaseQuestion})
	return c.endQuestionLocked(ctx, sessionID, state)
}

// Advance moves past the cooldown to the next question, or ends the session
// after the last one. This is the host's manual control; the cooldown timer
// calls the same path when auto-advance is on.
func (c *Controller) Advance(ctx context.Context, sessionID uuid.UUID) error {
	state := c.state(sessionID)
	if state == nil {
		return ErrNoOpenQuestion
	}
	state.mu.Lock()
	if !state.inCooldown {
		state.mu.Unlock()
		return ErrNoOpenQuestion
	}
	c.cancelTimer(timerKey{sessionID: sessionID, phase: phaseCooldown})

	next := state.currentIndex + 1
	if next >= len(state.questions) {
		state.mu.Unlock()
		return c.EndSession(ctx, sessionID)
	}
	err := c.startQuestionLocked(ctx, sessionID, state, next)
	state.mu.Unlock()
	return err
}

// SetAutoAdvance updates the auto-advance setting mid-session. Turning it on
// during a held cooldown schedules the pending advance; turning it off
// cancels a scheduled one and holds the current cooldown.
func (c *Controller) SetAutoAdvance(ctx context.Context, sessionID uuid.UUID, enabled bool, cooldownSeconds int) error {
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Mode != models.SessionModeLive {
		return ErrNotLiveSession
	}

	settings := sess.Settings
	settings.AutoAdvance = enabled
	if cooldownSeconds > 0 {
		settings.CooldownSeconds = cooldownSeconds
	}
	if err := c.sessions.Repo().UpdateSessionSettings(ctx, sessionID, settings); err != nil {
		return err
	}

	now := c.clock.Now().UTC()
	if state := c.state(sessionID); state != nil {
		state.mu.Lock()
		if state.inCooldown {
			if enabled && state.cooldownEnds == nil {
				ends := now.Add(time.Duration(settings.CooldownSeconds) * time.Second)
				state.cooldownEnds = &ends
				c.scheduleAdvance(ctx, sessionID, ends)
			} else if !enabled {
				c.cancelTimer(timerKey{sessionID: sessionID, phase: phaseCooldown})
				state.cooldownEnds = nil
			}
		}
		state.mu.Unlock()
	}

	c.publish(ctx, sessionID, events.EventTypeAutoAdvanceUpdated, events.AutoAdvanceUpdatedPayload{
		Enabled:         enabled,
		CooldownSeconds: settings.CooldownSeconds,
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Bool("enabled", enabled).
		Msg("Auto-advance updated")
	return nil
}

// EndSession completes the session, cancels its timers and broadcasts
// session_ended with the post-session display flags.
func (c *Controller) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == models.SessionStatusCompleted {
		return nil
	}

	c.cancelTimer(timerKey{sessionID: sessionID, phase: phaseQuestion})
	c.cancelTimer(timerKey{sessionID: sessionID, phase: phaseCooldown})

	now := c.clock.Now().UTC()
	if err := c.sessions.Repo().UpdateSessionStatus(ctx, sessionID, models.SessionStatusCompleted, now); err != nil {
		return err
	}

	c.statesMu.Lock()
	delete(c.states, sessionID)
	c.statesMu.Unlock()

	c.publish(ctx, sessionID, events.EventTypeSessionEnded, events.SessionEndedPayload{
		EndedAt:            now,
		ShowResultFeedback: sess.Settings.ShowResultFeedback,
		ShowLeaderboard:    sess.Settings.ShowLeaderboard,
	})
	log.Info().Str("session_id", sessionID.String()).Msg("Live session ended")
	return nil
}

// Shutdown cancels every timer. In-flight sessions resume from the database
// on the next start.
func (c *Controller) Shutdown() {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()
	for key, timer := range c.activeTimers {
		stopAndDrainTimer(timer)
		delete(c.activeTimers, key)
	}
}

func (c *Controller) startQuestion(ctx context.Context, sessionID uuid.UUID, index int) error {
	state := c.state(sessionID)
	if state == nil {
		return ErrNoOpenQuestion
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.startQuestionLocked(ctx, sessionID, state, index)
}

// startQuestionLocked opens a question. The caller holds state.mu.
func (c *Controller) startQuestionLocked(ctx context.Context, sessionID uuid.UUID, state *sessionState, index int) error {
	question := state.questions[index]
	state.currentIndex = index
	state.inCooldown = false
	state.cooldownEnds = nil

	seconds := question.TimeLimitSeconds
	if seconds <= 0 {
		seconds = DefaultQuestionSeconds
	}
	now := c.clock.Now().UTC()
	expiresAt := now.Add(time.Duration(seconds) * time.Second)

	if err := c.sessions.Repo().SetCurrentQuestion(ctx, sessionID, &question.ID, &expiresAt); err != nil {
		return err
	}

	c.publish(ctx, sessionID, events.EventTypeQuestionStarted, events.QuestionStartedPayload{
		Question:        question.Sanitized(),
		QuestionNumber:  index + 1,
		TotalQuestions:  len(state.questions),
		StartedAt:       now,
		ExpiresAt:       expiresAt,
		ServerTimestamp: now,
	})

	c.scheduleTimer(ctx, timerKey{sessionID: sessionID, phase: phaseQuestion}, expiresAt, func() {
		if err := c.endQuestion(context.WithoutCancel(ctx), sessionID); err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to end question on timer expiry")
		}
	})

	log.Info().
		Str("session_id", sessionID.String()).
		Str("question_id", question.ID.String()).
		Int("question_number", index+1).
		Time("expires_at", expiresAt).
		Msg("Question opened")
	return nil
}

// endQuestion is the question timer's entry point into the cooldown
// transition.
func (c *Controller) endQuestion(ctx context.Context, sessionID uuid.UUID) error {
	state := c.state(sessionID)
	if state == nil {
		return ErrNoOpenQuestion
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return c.endQuestionLocked(ctx, sessionID, state)
}

// endQuestionLocked transitions question -> cooldown. With auto-advance on
// the cooldown gets an absolute end instant and a timer; with it off the
// cooldown is held open until the host advances. The caller holds state.mu.
func (c *Controller) endQuestionLocked(ctx context.Context, sessionID uuid.UUID, state *sessionState) error {
	if state.currentIndex < 0 || state.inCooldown {
		return ErrNoOpenQuestion
	}
	sess, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	question := state.questions[state.currentIndex]

	// Closing the expiry in the database is what actually stops late
	// submissions; the timer only drives the broadcast.
	now := c.clock.Now().UTC()
	if err := c.sessions.Repo().SetCurrentQuestion(ctx, sessionID, &question.ID, &now); err != nil {
		return err
	}

	state.inCooldown = true
	var cooldownEnds *time.Time
	if sess.Settings.AutoAdvance {
		ends := now.Add(time.Duration(sess.Settings.CooldownSeconds) * time.Second)
		cooldownEnds = &ends
	}
	state.cooldownEnds = cooldownEnds

	c.publish(ctx, sessionID, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID:         question.ID.String(),
		CooldownEndsAt:     cooldownEnds,
		CooldownSeconds:    sess.Settings.CooldownSeconds,
		AutoAdvanceEnabled: sess.Settings.AutoAdvance,
	})

	if err := c.sendCooldownFeedback(ctx, sess, question, cooldownEnds); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to send cooldown feedback")
	}
	if sess.Settings.ShowLeaderboard {
		if err := c.broadcastLeaderboard(ctx, sessionID); err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to broadcast leaderboard")
		}
	}

	if cooldownEnds != nil {
		c.scheduleAdvance(ctx, sessionID, *cooldownEnds)
	}
	return nil
}

// sendCooldownFeedback emits cooldown_started to each participant. When the
// session shows feedback during cooldown each participant gets their own
// result attached; otherwise everyone gets the bare phase transition.
func (c *Controller) sendCooldownFeedback(ctx context.Context, sess *models.Session, question models.Question, cooldownEnds *time.Time) error {
	base := events.CooldownStartedPayload{
		QuestionID:      question.ID.String(),
		CooldownEndsAt:  cooldownEnds,
		CooldownSeconds: sess.Settings.CooldownSeconds,
	}
	if !sess.Settings.ShowFeedbackInCooldown || !question.Type.Graded() {
		c.publish(ctx, sess.ID, events.EventTypeCooldownStarted, base)
		return nil
	}

	participants, err := c.sessions.ListParticipants(ctx, sess.ID)
	if err != nil {
		return err
	}
	correctAnswer := session.CorrectAnswerJSON(question)
	now := c.clock.Now().UTC()
	for _, p := range participants {
		payload := base
		feedback := &models.CooldownFeedback{
			CorrectAnswer: correctAnswer,
			Explanation:   question.Explanation,
		}
		sub, err := c.sessions.Repo().GetSubmission(ctx, p.ID, question.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			feedback.DidNotAnswer = true
		case err != nil:
			return err
		default:
			feedback.IsCorrect = sub.IsCorrect
			feedback.PointsEarned = sub.PointsEarned
		}
		payload.YourAnswer = feedback

		evt, err := events.NewForParticipant(sess.ID, p.ID, events.EventTypeCooldownStarted, now, payload)
		if err != nil {
			return err
		}
		if err := c.bus.Publish(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) broadcastLeaderboard(ctx context.Context, sessionID uuid.UUID) error {
	participants, err := c.sessions.ListParticipants(ctx, sessionID)
	if err != nil {
		return err
	}
	submissions, err := c.sessions.Repo().ListSubmissionsBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	c.publish(ctx, sessionID, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: leaderboard.TopN(leaderboard.Compute(participants, submissions), LeaderboardSize),
	})
	return nil
}

func (c *Controller) scheduleAdvance(ctx context.Context, sessionID uuid.UUID, at time.Time) {
	c.scheduleTimer(ctx, timerKey{sessionID: sessionID, phase: phaseCooldown}, at, func() {
		if err := c.Advance(context.WithoutCancel(ctx), sessionID); err != nil && !errors.Is(err, ErrNoOpenQuestion) {
			log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to auto-advance session")
		}
	})
}

// scheduleTimer arms a one-shot timer for a phase deadline, replacing any
// timer already armed under the same key.
func (c *Controller) scheduleTimer(ctx context.Context, key timerKey, at time.Time, fire func()) {
	duration := at.Sub(c.clock.Now())
	if duration < 0 {
		duration = 0
	}
	timer := c.clock.NewTimer(duration)
	c.replaceTimer(key, timer)

	go func() {
		select {
		case <-timer.Chan():
			// A timer canceled or replaced between firing and this point
			// must not act; only the registered timer gets to fire.
			if c.removeTimer(key, timer) {
				fire()
			}
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			c.removeTimer(key, timer)
		}
	}()
}

// replaceTimer atomically swaps in a timer for a key, stopping any timer
// already registered so two timers never race for the same phase.
func (c *Controller) replaceTimer(key timerKey, newTimer clockwork.Timer) {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()
	if existing, ok := c.activeTimers[key]; ok {
		stopAndDrainTimer(existing)
	}
	c.activeTimers[key] = newTimer
}

// removeTimer unregisters a timer only if it is still the one registered,
// so a fired timer never removes its replacement. Reports whether the
// timer was still current.
func (c *Controller) removeTimer(key timerKey, timer clockwork.Timer) bool {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()
	if cur, ok := c.activeTimers[key]; ok && cur == timer {
		delete(c.activeTimers, key)
		return true
	}
	return false
}

func (c *Controller) cancelTimer(key timerKey) {
	c.activeTimersMu.Lock()
	defer c.activeTimersMu.Unlock()
	if timer, ok := c.activeTimers[key]; ok {
		stopAndDrainTimer(timer)
		delete(c.activeTimers, key)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so a concurrently
// fired tick cannot leak.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (c *Controller) state(sessionID uuid.UUID) *sessionState {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	return c.states[sessionID]
}

func (c *Controller) publish(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload any) {
	evt, err := events.New(sessionID, eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(eventType)).
			Msg("Failed to build event")
		return
	}
	if err := c.bus.Publish(ctx, evt); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(eventType)).
			Msg("Failed to publish event")
	}
}
