package quizclient

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/gateway"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestMachine(t *testing.T) (*StateMachine, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	m := NewStateMachine(clock, nil)
	t.Cleanup(m.Close)
	return m, clock
}

func event(t *testing.T, eventType events.EventType, payload any) *events.Event {
	t.Helper()
	evt, err := events.New(uuid.New(), eventType, testNow, payload)
	require.NoError(t, err)
	return evt
}

func questionPayload(number int, expiresAt time.Time) events.QuestionStartedPayload {
	return events.QuestionStartedPayload{
		Question:       models.Question{ID: uuid.New(), Text: "q", TimeLimitSeconds: 20},
		QuestionNumber: number,
		TotalQuestions: 3,
		StartedAt:      testNow,
		ExpiresAt:      expiresAt,
	}
}

// waitForSnapshot polls until the predicate holds, advancing the fake clock a
// second per attempt so pending countdowns make progress.
func waitForSnapshot(t *testing.T, m *StateMachine, clock *clockwork.FakeClock, pred func(Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred(m.Snapshot()) {
			return
		}
		clock.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for snapshot condition")
}

func TestQuestionStartedResetsTransientState(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeAnswerSubmitted, events.AnswerSubmittedPayload{
		QuestionID: uuid.New().String(),
		Result:     &models.CooldownFeedback{IsCorrect: true, PointsEarned: 10},
	}))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID: uuid.New().String(),
	}))
	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))

	snap := m.Snapshot()
	require.Equal(t, PhaseCooldown, snap.Phase)
	require.True(t, snap.Answered)
	require.NotNil(t, snap.Feedback)
	require.True(t, snap.LeaderboardVisible)

	// Next question preempts the cooldown and clears per-question state.
	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(2, testNow.Add(20*time.Second))))

	snap = m.Snapshot()
	assert.Equal(t, PhaseQuestion, snap.Phase)
	assert.Equal(t, 2, snap.QuestionNumber)
	assert.Equal(t, 20, snap.Remaining)
	assert.False(t, snap.Answered)
	assert.Nil(t, snap.Feedback)
	assert.False(t, snap.LeaderboardVisible)
	assert.False(t, snap.CooldownHeld)
}

func TestQuestionEndedWithoutAutoAdvanceHoldsCooldown(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID:         uuid.New().String(),
		CooldownEndsAt:     nil,
		AutoAdvanceEnabled: false,
	}))

	snap := m.Snapshot()
	assert.Equal(t, PhaseCooldown, snap.Phase)
	assert.True(t, snap.CooldownHeld)
	assert.Zero(t, snap.CooldownRemaining)
	assert.Zero(t, snap.Remaining)
	assert.False(t, snap.AutoAdvance)
}

func TestQuestionEndedWithAutoAdvanceCountsDown(t *testing.T) {
	m, _ := newTestMachine(t)

	ends := testNow.Add(5 * time.Second)
	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID:         uuid.New().String(),
		CooldownEndsAt:     &ends,
		CooldownSeconds:    5,
		AutoAdvanceEnabled: true,
	}))

	snap := m.Snapshot()
	assert.Equal(t, PhaseCooldown, snap.Phase)
	assert.False(t, snap.CooldownHeld)
	assert.Equal(t, 5, snap.CooldownRemaining)
	assert.True(t, snap.AutoAdvance)
}

func TestCooldownStartedCarriesOwnResult(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeCooldownStarted, events.CooldownStartedPayload{
		QuestionID: uuid.New().String(),
		YourAnswer: &models.CooldownFeedback{IsCorrect: false, PointsEarned: 0, Explanation: "nope"},
	}))

	snap := m.Snapshot()
	assert.Equal(t, PhaseCooldown, snap.Phase)
	require.NotNil(t, snap.Feedback)
	assert.False(t, snap.Feedback.IsCorrect)
	assert.Equal(t, "nope", snap.Feedback.Explanation)
}

func TestAutoAdvanceToggleDuringHeldCooldown(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID: uuid.New().String(),
	}))
	require.True(t, m.Snapshot().CooldownHeld)

	m.HandleEvent(event(t, events.EventTypeAutoAdvanceUpdated, events.AutoAdvanceUpdatedPayload{
		Enabled:         true,
		CooldownSeconds: 5,
	}))
	snap := m.Snapshot()
	assert.False(t, snap.CooldownHeld)
	assert.Equal(t, 5, snap.CooldownRemaining)
	assert.True(t, snap.AutoAdvance)

	// Turning it back off re-holds the cooldown.
	m.HandleEvent(event(t, events.EventTypeAutoAdvanceUpdated, events.AutoAdvanceUpdatedPayload{
		Enabled: false,
	}))
	snap = m.Snapshot()
	assert.True(t, snap.CooldownHeld)
	assert.Zero(t, snap.CooldownRemaining)
	assert.False(t, snap.AutoAdvance)
}

func TestLeaderboardBeforeSessionStartStaysHidden(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))

	snap := m.Snapshot()
	require.Equal(t, PhaseWaiting, snap.Phase)
	assert.False(t, snap.LeaderboardVisible)
	assert.Len(t, snap.Leaderboard, 1, "board data is kept for later display")

	// Once the session is running the overlay shows as usual.
	m.HandleEvent(event(t, events.EventTypeSessionStarted, events.SessionStartedPayload{TotalQuestions: 3}))
	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))
	assert.True(t, m.Snapshot().LeaderboardVisible)
}

func TestAutoAdvanceToggleDuringTimedCooldownKeepsCountdown(t *testing.T) {
	m, _ := newTestMachine(t)

	ends := testNow.Add(3 * time.Second)
	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID:         uuid.New().String(),
		CooldownEndsAt:     &ends,
		CooldownSeconds:    3,
		AutoAdvanceEnabled: true,
	}))
	require.Equal(t, 3, m.Snapshot().CooldownRemaining)

	// A redundant enable must not restart the countdown from the configured
	// length; the absolute end instant still governs it.
	m.HandleEvent(event(t, events.EventTypeAutoAdvanceUpdated, events.AutoAdvanceUpdatedPayload{
		Enabled:         true,
		CooldownSeconds: 10,
	}))
	snap := m.Snapshot()
	assert.Equal(t, 3, snap.CooldownRemaining)
	assert.False(t, snap.CooldownHeld)
}

func TestLeaderboardOverlayRevertsAfterTimeout(t *testing.T) {
	m, clock := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(60*time.Second))))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID: uuid.New().String(),
	}))
	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))
	require.True(t, m.Snapshot().LeaderboardVisible)

	waitForSnapshot(t, m, clock, func(s Snapshot) bool {
		return !s.LeaderboardVisible
	})
	assert.Equal(t, PhaseCooldown, m.Snapshot().Phase, "reverting the overlay must not change phase")
}

func TestLeaderboardPersistentAfterSessionEnd(t *testing.T) {
	m, clock := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))
	m.HandleEvent(event(t, events.EventTypeSessionEnded, events.SessionEndedPayload{
		EndedAt:         testNow,
		ShowLeaderboard: true,
	}))

	snap := m.Snapshot()
	require.Equal(t, PhaseEnded, snap.Phase)
	require.True(t, snap.LeaderboardVisible)

	// The overlay timeout no longer applies once the session has ended.
	clock.Advance(time.Duration(LeaderboardOverlaySeconds+5) * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.Snapshot().LeaderboardVisible)
}

func TestSessionEndedHidesLeaderboardWhenDisabled(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeLeaderboardUpdate, events.LeaderboardUpdatePayload{
		Leaderboard: []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
	}))
	m.HandleEvent(event(t, events.EventTypeSessionEnded, events.SessionEndedPayload{
		EndedAt:         testNow,
		ShowLeaderboard: false,
	}))

	assert.False(t, m.Snapshot().LeaderboardVisible)
}

func TestSessionEndedClearsFeedbackUnlessAllowed(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeCooldownStarted, events.CooldownStartedPayload{
		QuestionID: uuid.New().String(),
		YourAnswer: &models.CooldownFeedback{IsCorrect: true, PointsEarned: 10},
	}))
	m.HandleEvent(event(t, events.EventTypeSessionEnded, events.SessionEndedPayload{
		EndedAt:            testNow,
		ShowResultFeedback: false,
	}))
	assert.Nil(t, m.Snapshot().Feedback)

	m2, _ := newTestMachine(t)
	m2.HandleEvent(event(t, events.EventTypeCooldownStarted, events.CooldownStartedPayload{
		QuestionID: uuid.New().String(),
		YourAnswer: &models.CooldownFeedback{IsCorrect: true, PointsEarned: 10},
	}))
	m2.HandleEvent(event(t, events.EventTypeSessionEnded, events.SessionEndedPayload{
		EndedAt:            testNow,
		ShowResultFeedback: true,
	}))
	require.NotNil(t, m2.Snapshot().Feedback)
	assert.True(t, m2.Snapshot().Feedback.IsCorrect)
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	m, _ := newTestMachine(t)

	m.HandleEvent(event(t, events.EventTypeQuestionStarted, questionPayload(1, testNow.Add(20*time.Second))))
	before := m.Snapshot()

	m.HandleEvent(&events.Event{
		ID:        uuid.New().String(),
		SessionID: uuid.New().String(),
		Type:      events.EventType("mystery"),
		Timestamp: testNow,
	})

	assert.Equal(t, before.Phase, m.Snapshot().Phase)
	assert.Equal(t, before.QuestionNumber, m.Snapshot().QuestionNumber)
}

func TestResyncRebuildsMidQuestionState(t *testing.T) {
	m, _ := newTestMachine(t)

	expiresAt := testNow.Add(12 * time.Second)
	m.Resync(&gateway.SessionStateResponse{
		SessionID: uuid.New().String(),
		Status:    models.SessionStatusActive,
		Mode:      models.SessionModeLive,
		CurrentQuestion: &gateway.CurrentQuestionInfo{
			Question:       models.Question{ID: uuid.New(), Text: "q"},
			QuestionNumber: 2,
			TotalQuestions: 3,
			ExpiresAt:      &expiresAt,
		},
		Answered:        true,
		ShowLeaderboard: true,
	})

	snap := m.Snapshot()
	assert.Equal(t, PhaseQuestion, snap.Phase)
	assert.Equal(t, 2, snap.QuestionNumber)
	assert.Equal(t, 3, snap.TotalQuestions)
	assert.Equal(t, 12, snap.Remaining)
	assert.True(t, snap.Answered)
	assert.False(t, snap.LeaderboardVisible)
}

func TestResyncBetweenQuestionsHoldsCooldown(t *testing.T) {
	m, _ := newTestMachine(t)

	m.Resync(&gateway.SessionStateResponse{
		SessionID: uuid.New().String(),
		Status:    models.SessionStatusActive,
		Mode:      models.SessionModeLive,
	})

	snap := m.Snapshot()
	assert.Equal(t, PhaseCooldown, snap.Phase)
	assert.True(t, snap.CooldownHeld)
}

func TestResyncCompletedSession(t *testing.T) {
	m, _ := newTestMachine(t)

	m.Resync(&gateway.SessionStateResponse{
		SessionID:       uuid.New().String(),
		Status:          models.SessionStatusCompleted,
		Mode:            models.SessionModeLive,
		Leaderboard:     []models.LeaderboardEntry{{Rank: 1, DisplayName: "Alice"}},
		ShowLeaderboard: true,
	})

	snap := m.Snapshot()
	assert.Equal(t, PhaseEnded, snap.Phase)
	assert.True(t, snap.LeaderboardVisible)
}
