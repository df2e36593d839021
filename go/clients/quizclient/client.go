// Package quizclient is the participant-side library for the quiz engine:
// an HTTP client for join and answering, a reconnecting WebSocket session
// connection, and the state machine that turns the event stream into a
// renderable view of the session.
package quizclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/clients"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/gateway"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/selfpaced"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

var (
	// ErrAlreadyAnswered rejects a repeat submit for the open question
	// locally. The server enforces the same first-answer-wins rule.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrQuestionClosed rejects a submit after the local countdown hit
	// zero.
	ErrQuestionClosed = errors.New("question is no longer open")
)

type QuizClient struct {
	*clients.BaseClient

	baseURL string
	token   string

	// machine, when bound, guards live submits against the local view of
	// the open question.
	machine *StateMachine
}

// NewQuizClient creates a client for the quiz engine API. The token is
// empty until Join succeeds.
func NewQuizClient(baseURL string) *QuizClient {
	return &QuizClient{
		BaseClient: clients.NewBaseClient(baseURL),
		baseURL:    baseURL,
	}
}

// Token returns the participant auth token from the last successful join.
func (c *QuizClient) Token() string {
	return c.token
}

// BindStateMachine attaches the state machine that guards live submits.
// NewSessionConnection binds its machine automatically.
func (c *QuizClient) BindStateMachine(m *StateMachine) {
	c.machine = m
}

// Join enters a session by room code and stores the returned auth token
// for all subsequent calls.
func (c *QuizClient) Join(ctx context.Context, req session.JoinRequest) (*session.JoinResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal join request: %w", err)
	}
	data, err := c.Post(ctx, "/api/sessions/join", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	var resp session.JoinResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse join response: %w", err)
	}
	c.token = resp.AuthToken
	c.SetHeader("Authorization", "Bearer "+c.token)
	return &resp, nil
}

// SubmitAnswer submits a live-mode answer for the open question. When a
// state machine is bound, a repeat submit or a submit after the local
// countdown expired is rejected without a round trip; the server stays
// authoritative either way.
func (c *QuizClient) SubmitAnswer(ctx context.Context, req session.SubmitAnswerRequest) (*models.AnswerSubmission, error) {
	if c.machine != nil {
		snap := c.machine.Snapshot()
		if snap.Question != nil && snap.Question.ID == req.QuestionID {
			if snap.Answered {
				return nil, ErrAlreadyAnswered
			}
			if snap.Phase != PhaseQuestion || snap.Remaining <= 0 {
				return nil, ErrQuestionClosed
			}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}
	data, err := c.Post(ctx, "/api/session/answer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to submit answer: %w", err)
	}

	var sub models.AnswerSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse submission: %w", err)
	}
	if c.machine != nil {
		c.machine.NoteAnswered(req.QuestionID)
	}
	return &sub, nil
}

// GetSessionState fetches the authoritative state snapshot, used to
// resynchronize after a reconnect.
func (c *QuizClient) GetSessionState(ctx context.Context) (*gateway.SessionStateResponse, error) {
	data, err := c.Get(ctx, "/api/session/state?token="+c.token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}

	var state gateway.SessionStateResponse
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &state, nil
}

// Progress fetches the self-paced progress overview.
func (c *QuizClient) Progress(ctx context.Context) (*models.SelfPacedProgress, error) {
	data, err := c.Get(ctx, "/api/selfpaced/progress")
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	var progress models.SelfPacedProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to parse progress: %w", err)
	}
	return &progress, nil
}

// Navigate moves the self-paced question pointer.
func (c *QuizClient) Navigate(ctx context.Context, questionIndex int) error {
	body, err := json.Marshal(map[string]int{"question_index": questionIndex})
	if err != nil {
		return err
	}
	if _, err := c.Post(ctx, "/api/selfpaced/navigate", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	return nil
}

// SaveAnswer saves a self-paced answer; it stays mutable until Submit.
func (c *QuizClient) SaveAnswer(ctx context.Context, req session.SubmitAnswerRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	if _, err := c.Post(ctx, "/api/selfpaced/answer", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// Review fetches the participant's answers for the review screen.
func (c *QuizClient) Review(ctx context.Context) ([]selfpaced.AnswerReview, error) {
	data, err := c.Get(ctx, "/api/selfpaced/review")
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	var reviews []selfpaced.AnswerReview
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("failed to parse review: %w", err)
	}
	return reviews, nil
}

// Submit finalizes a self-paced attempt. Safe to retry: the stored result
// comes back unchanged.
func (c *QuizClient) Submit(ctx context.Context) (*models.FinalResult, error) {
	data, err := c.Post(ctx, "/api/selfpaced/submit", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to submit: %w", err)
	}

	var result models.FinalResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse final result: %w", err)
	}
	return &result, nil
}
