package quizclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

func openQuestion(t *testing.T, m *StateMachine, id uuid.UUID, expiresAt time.Time) {
	t.Helper()
	m.HandleEvent(event(t, events.EventTypeQuestionStarted, events.QuestionStartedPayload{
		Question:       models.Question{ID: id, Text: "q", TimeLimitSeconds: 20},
		QuestionNumber: 1,
		TotalQuestions: 3,
		StartedAt:      testNow,
		ExpiresAt:      expiresAt,
	}))
}

func TestSubmitAnswerGuardsRepeatSubmits(t *testing.T) {
	var posts atomic.Int32
	questionID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		assert.Equal(t, "/api/session/answer", r.URL.Path)
		json.NewEncoder(w).Encode(models.AnswerSubmission{
			ID:         uuid.New(),
			QuestionID: questionID,
			IsCorrect:  true,
		})
	}))
	t.Cleanup(server.Close)

	m, _ := newTestMachine(t)
	openQuestion(t, m, questionID, testNow.Add(20*time.Second))

	client := NewQuizClient(server.URL)
	client.BindStateMachine(m)

	req := session.SubmitAnswerRequest{
		QuestionID: questionID,
		Answer:     json.RawMessage(`{"selected_option":0}`),
	}
	sub, err := client.SubmitAnswer(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, m.Snapshot().Answered)

	// The repeat submit is rejected locally and never reaches the server.
	_, err = client.SubmitAnswer(context.Background(), req)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	assert.Equal(t, int32(1), posts.Load())
}

func TestSubmitAnswerRejectedAfterCountdownExpires(t *testing.T) {
	m, _ := newTestMachine(t)
	questionID := uuid.New()
	openQuestion(t, m, questionID, testNow)

	client := NewQuizClient("http://quiz.invalid")
	client.BindStateMachine(m)

	_, err := client.SubmitAnswer(context.Background(), session.SubmitAnswerRequest{QuestionID: questionID})
	assert.ErrorIs(t, err, ErrQuestionClosed)
}

func TestSubmitAnswerRejectedDuringCooldown(t *testing.T) {
	m, _ := newTestMachine(t)
	questionID := uuid.New()
	openQuestion(t, m, questionID, testNow.Add(20*time.Second))
	m.HandleEvent(event(t, events.EventTypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID: questionID.String(),
	}))

	client := NewQuizClient("http://quiz.invalid")
	client.BindStateMachine(m)

	_, err := client.SubmitAnswer(context.Background(), session.SubmitAnswerRequest{QuestionID: questionID})
	assert.ErrorIs(t, err, ErrQuestionClosed)
}
