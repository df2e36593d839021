package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a session event.
type EventType string

const (
	EventTypeSessionStarted     EventType = "session_started"
	EventTypeQuestionStarted    EventType = "question_started"
	EventTypeQuestionEnded      EventType = "question_ended"
	EventTypeCooldownStarted    EventType = "cooldown_started"
	EventTypeAnswerSubmitted    EventType = "answer_submitted"
	EventTypeLeaderboardUpdate  EventType = "leaderboard_update"
	EventTypeSessionEnded       EventType = "session_ended"
	EventTypeAutoAdvanceUpdated EventType = "auto_advance_updated"
	EventTypePing               EventType = "ping"
)

// Event is the envelope for all session events. ParticipantID, when set,
// targets the event at a single participant instead of the whole session.
// All timestamps on the wire are absolute UTC instants so clients derive
// countdowns from a single server reference point.
type Event struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	ParticipantID string          `json:"participant_id,omitempty"`
	Type          EventType       `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// New builds an event envelope for a session-wide broadcast.
func New(sessionID uuid.UUID, eventType EventType, now time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: now.UTC(),
		Data:      data,
	}, nil
}

// NewForParticipant builds an event targeted at one participant.
func NewForParticipant(sessionID, participantID uuid.UUID, eventType EventType, now time.Time, payload any) (*Event, error) {
	evt, err := New(sessionID, eventType, now, payload)
	if err != nil {
		return nil, err
	}
	evt.ParticipantID = participantID.String()
	return evt, nil
}

// ParsePayload parses event data into the payload struct for its type.
// Unknown event types return (nil, nil): the caller logs and ignores them
// rather than crashing the state machine.
func ParsePayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeSessionStarted:
		var payload SessionStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeQuestionStarted:
		var payload QuestionStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeQuestionEnded:
		var payload QuestionEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeCooldownStarted:
		var payload CooldownStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAnswerSubmitted:
		var payload AnswerSubmittedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeLeaderboardUpdate:
		var payload LeaderboardUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSessionEnded:
		var payload SessionEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAutoAdvanceUpdated:
		var payload AutoAdvanceUpdatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePing:
		return PingPayload{}, nil

	default:
		return nil, nil // unknown event type
	}
}
