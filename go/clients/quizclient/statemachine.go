package quizclient

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/gateway"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/timesync"
)

// Phase is the participant's current place in the live session flow.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseQuestion Phase = "question"
	PhaseCooldown Phase = "cooldown"
	PhaseEnded    Phase = "ended"
)

// LeaderboardOverlaySeconds bounds how long a mid-session leaderboard stays
// up before the view reverts to the current phase.
const LeaderboardOverlaySeconds = 10

const (
	keyQuestion    = "question"
	keyCooldown    = "cooldown"
	keyLeaderboard = "leaderboard"
)

// Snapshot is the renderable state of the session at one moment. Every
// field is derived from server events; the client never advances phase on
// its own clock.
type Snapshot struct {
	Phase          Phase
	Question       *models.Question
	QuestionNumber int
	TotalQuestions int

	// Remaining whole seconds on the question countdown.
	Remaining int

	// Cooldown countdown. Held means no end instant exists: the host must
	// advance manually and no countdown runs.
	CooldownRemaining int
	CooldownHeld      bool

	// Per-question transient state, reset when the next question starts.
	Answered bool
	Feedback *models.CooldownFeedback

	Leaderboard        []models.LeaderboardEntry
	LeaderboardVisible bool

	AutoAdvance bool

	// Post-session display flags, valid once Phase is PhaseEnded.
	ShowResultFeedback bool
	ShowLeaderboard    bool
}

// StateMachine folds the session event stream into a Snapshot. Events must
// be handed to it in arrival order; it is safe for one feeder goroutine
// plus concurrent Snapshot readers.
type StateMachine struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	countdowns *timesync.Runner
	snap       Snapshot
	onChange   func(Snapshot)

	// active tracks whether the session is running. Mid-session overlays
	// are suppressed outside of it.
	active bool

	// generation invalidates a pending leaderboard overlay revert when a
	// newer overlay or a phase change supersedes it.
	leaderboardGen int
}

// NewStateMachine creates a state machine. onChange, when non-nil, fires
// with a copy of the snapshot after every visible change.
func NewStateMachine(clock clockwork.Clock, onChange func(Snapshot)) *StateMachine {
	return &StateMachine{
		clock:      clock,
		countdowns: timesync.NewRunner(clock),
		snap:       Snapshot{Phase: PhaseWaiting},
		onChange:   onChange,
	}
}

// Snapshot returns a copy of the current state.
func (m *StateMachine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Close stops all countdowns.
func (m *StateMachine) Close() {
	m.countdowns.StopAll()
}

// HandleEvent applies one server event.
func (m *StateMachine) HandleEvent(evt *events.Event) {
	payload, err := events.ParsePayload(evt)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("ignoring malformed event")
		return
	}
	if payload == nil {
		log.Debug().Str("event_type", string(evt.Type)).Msg("ignoring unknown event type")
		return
	}

	switch p := payload.(type) {
	case events.SessionStartedPayload:
		m.handleSessionStarted(p)
	case events.QuestionStartedPayload:
		m.handleQuestionStarted(p)
	case events.QuestionEndedPayload:
		m.handleQuestionEnded(p)
	case events.CooldownStartedPayload:
		m.handleCooldownStarted(p)
	case events.AnswerSubmittedPayload:
		m.handleAnswerSubmitted(p)
	case events.LeaderboardUpdatePayload:
		m.handleLeaderboardUpdate(p)
	case events.AutoAdvanceUpdatedPayload:
		m.handleAutoAdvanceUpdated(p)
	case events.SessionEndedPayload:
		m.handleSessionEnded(p)
	}
}

func (m *StateMachine) handleSessionStarted(p events.SessionStartedPayload) {
	m.mu.Lock()
	m.active = true
	m.snap.TotalQuestions = p.TotalQuestions
	m.mu.Unlock()
	m.emit()
}

// handleQuestionStarted preempts whatever phase was showing: any cooldown
// countdown stops, stale feedback and the answered flag reset, and a fresh
// question countdown starts from the server's absolute expiry.
func (m *StateMachine) handleQuestionStarted(p events.QuestionStartedPayload) {
	m.countdowns.Stop(keyCooldown)

	m.mu.Lock()
	q := p.Question
	m.active = true
	m.snap.Phase = PhaseQuestion
	m.snap.Question = &q
	m.snap.QuestionNumber = p.QuestionNumber
	m.snap.TotalQuestions = p.TotalQuestions
	m.snap.Remaining = timesync.Remaining(p.ExpiresAt, m.clock.Now())
	m.snap.CooldownRemaining = 0
	m.snap.CooldownHeld = false
	m.snap.Answered = false
	m.snap.Feedback = nil
	m.snap.LeaderboardVisible = false
	m.leaderboardGen++
	m.mu.Unlock()
	m.emit()

	if !p.ExpiresAt.IsZero() {
		m.countdowns.Start(keyQuestion, p.ExpiresAt, m.setRemaining, nil)
	} else {
		// No usable expiry from the server; fall back to decrementing the
		// advertised limit.
		m.countdowns.StartFallback(keyQuestion, q.TimeLimitSeconds, m.setRemaining, nil)
	}
}

func (m *StateMachine) handleQuestionEnded(p events.QuestionEndedPayload) {
	m.countdowns.Stop(keyQuestion)

	m.mu.Lock()
	m.snap.Phase = PhaseCooldown
	m.snap.Remaining = 0
	m.snap.AutoAdvance = p.AutoAdvanceEnabled
	m.snap.CooldownHeld = p.CooldownEndsAt == nil
	if p.CooldownEndsAt != nil {
		m.snap.CooldownRemaining = timesync.Remaining(*p.CooldownEndsAt, m.clock.Now())
	} else {
		m.snap.CooldownRemaining = 0
	}
	m.mu.Unlock()
	m.emit()

	if p.CooldownEndsAt != nil {
		m.countdowns.Start(keyCooldown, *p.CooldownEndsAt, m.setCooldownRemaining, nil)
	}
}

// handleCooldownStarted carries the participant's own result when feedback
// is enabled. It may arrive instead of question_ended, so it performs the
// same phase transition.
func (m *StateMachine) handleCooldownStarted(p events.CooldownStartedPayload) {
	m.countdowns.Stop(keyQuestion)

	m.mu.Lock()
	m.snap.Phase = PhaseCooldown
	m.snap.Remaining = 0
	m.snap.Feedback = p.YourAnswer
	m.snap.CooldownHeld = p.CooldownEndsAt == nil
	if p.CooldownEndsAt != nil {
		m.snap.CooldownRemaining = timesync.Remaining(*p.CooldownEndsAt, m.clock.Now())
	} else {
		m.snap.CooldownRemaining = 0
	}
	m.mu.Unlock()
	m.emit()

	if p.CooldownEndsAt != nil {
		m.countdowns.Start(keyCooldown, *p.CooldownEndsAt, m.setCooldownRemaining, nil)
	}
}

// NoteAnswered records a locally confirmed submission for the open
// question, so repeat submits are rejected before reaching the server.
func (m *StateMachine) NoteAnswered(questionID uuid.UUID) {
	m.mu.Lock()
	if m.snap.Question == nil || m.snap.Question.ID != questionID {
		m.mu.Unlock()
		return
	}
	m.snap.Answered = true
	m.mu.Unlock()
	m.emit()
}

func (m *StateMachine) handleAnswerSubmitted(p events.AnswerSubmittedPayload) {
	m.mu.Lock()
	m.snap.Answered = true
	if p.Result != nil {
		m.snap.Feedback = p.Result
	}
	m.mu.Unlock()
	m.emit()
}

// handleLeaderboardUpdate shows the leaderboard as a bounded overlay while
// the session is running, reverting after LeaderboardOverlaySeconds. Once
// the session has ended the leaderboard is persistent instead. Before the
// session starts the board data is stored but never shown.
func (m *StateMachine) handleLeaderboardUpdate(p events.LeaderboardUpdatePayload) {
	m.mu.Lock()
	m.snap.Leaderboard = p.Leaderboard
	if m.snap.Phase == PhaseEnded {
		m.snap.LeaderboardVisible = m.snap.ShowLeaderboard
		m.mu.Unlock()
		m.emit()
		return
	}
	if !m.active {
		m.mu.Unlock()
		m.emit()
		return
	}
	m.snap.LeaderboardVisible = true
	m.leaderboardGen++
	gen := m.leaderboardGen
	m.mu.Unlock()
	m.emit()

	m.countdowns.Start(keyLeaderboard, m.clock.Now().Add(LeaderboardOverlaySeconds*time.Second), nil, func() {
		m.mu.Lock()
		if m.leaderboardGen != gen || m.snap.Phase == PhaseEnded {
			m.mu.Unlock()
			return
		}
		m.snap.LeaderboardVisible = false
		m.mu.Unlock()
		m.emit()
	})
}

func (m *StateMachine) handleAutoAdvanceUpdated(p events.AutoAdvanceUpdatedPayload) {
	m.mu.Lock()
	m.snap.AutoAdvance = p.Enabled
	inCooldown := m.snap.Phase == PhaseCooldown
	wasHeld := m.snap.CooldownHeld
	if inCooldown && !p.Enabled {
		m.snap.CooldownHeld = true
		m.snap.CooldownRemaining = 0
	}
	if inCooldown && p.Enabled && wasHeld {
		m.snap.CooldownHeld = false
		m.snap.CooldownRemaining = p.CooldownSeconds
	}
	resume := inCooldown && p.Enabled && wasHeld
	m.mu.Unlock()
	m.emit()

	if inCooldown && !p.Enabled {
		m.countdowns.Stop(keyCooldown)
	}
	if resume {
		// The server does not rebroadcast an end instant on toggle, so a
		// held cooldown resumes in decrement mode. A cooldown already
		// counting toward its absolute end keeps that countdown untouched.
		m.countdowns.StartFallback(keyCooldown, p.CooldownSeconds, m.setCooldownRemaining, nil)
	}
}

func (m *StateMachine) handleSessionEnded(p events.SessionEndedPayload) {
	m.countdowns.StopAll()

	m.mu.Lock()
	m.active = false
	m.snap.Phase = PhaseEnded
	m.snap.Question = nil
	m.snap.Remaining = 0
	m.snap.CooldownRemaining = 0
	m.snap.CooldownHeld = false
	m.snap.ShowResultFeedback = p.ShowResultFeedback
	m.snap.ShowLeaderboard = p.ShowLeaderboard
	if !p.ShowResultFeedback {
		m.snap.Feedback = nil
	}
	m.snap.LeaderboardVisible = p.ShowLeaderboard && len(m.snap.Leaderboard) > 0
	m.mu.Unlock()
	m.emit()
}

// Resync rebuilds the snapshot from an authoritative state response after
// a reconnect. Countdowns restart from the snapshot's absolute expiry.
func (m *StateMachine) Resync(state *gateway.SessionStateResponse) {
	m.countdowns.StopAll()

	m.mu.Lock()
	m.active = state.Status == models.SessionStatusActive
	m.snap = Snapshot{
		Phase:              PhaseWaiting,
		Leaderboard:        state.Leaderboard,
		ShowLeaderboard:    state.ShowLeaderboard,
		LeaderboardVisible: false,
	}
	switch state.Status {
	case models.SessionStatusCompleted:
		m.snap.Phase = PhaseEnded
		m.snap.LeaderboardVisible = state.ShowLeaderboard && len(state.Leaderboard) > 0
	case models.SessionStatusActive:
		if state.CurrentQuestion != nil {
			q := state.CurrentQuestion.Question
			m.snap.Phase = PhaseQuestion
			m.snap.Question = &q
			m.snap.QuestionNumber = state.CurrentQuestion.QuestionNumber
			m.snap.TotalQuestions = state.CurrentQuestion.TotalQuestions
			m.snap.Answered = state.Answered
			if state.CurrentQuestion.ExpiresAt != nil {
				m.snap.Remaining = timesync.Remaining(*state.CurrentQuestion.ExpiresAt, m.clock.Now())
			}
		} else {
			// Active with no open question: between questions.
			m.snap.Phase = PhaseCooldown
			m.snap.CooldownHeld = true
		}
	}
	expiry := (*time.Time)(nil)
	if state.CurrentQuestion != nil {
		expiry = state.CurrentQuestion.ExpiresAt
	}
	phase := m.snap.Phase
	m.mu.Unlock()
	m.emit()

	if phase == PhaseQuestion && expiry != nil && !expiry.IsZero() {
		m.countdowns.Start(keyQuestion, *expiry, m.setRemaining, nil)
	}
}

func (m *StateMachine) setRemaining(remaining int) {
	m.mu.Lock()
	if m.snap.Phase != PhaseQuestion {
		m.mu.Unlock()
		return
	}
	m.snap.Remaining = remaining
	m.mu.Unlock()
	m.emit()
}

func (m *StateMachine) setCooldownRemaining(remaining int) {
	m.mu.Lock()
	if m.snap.Phase != PhaseCooldown {
		m.mu.Unlock()
		return
	}
	m.snap.CooldownRemaining = remaining
	m.mu.Unlock()
	m.emit()
}

func (m *StateMachine) emit() {
	if m.onChange == nil {
		return
	}
	m.onChange(m.Snapshot())
}
