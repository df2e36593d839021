package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/bus"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
)

// EventConsumer subscribes to the event bus and routes session events into
// the connection manager. Events carrying a participant id go to that
// participant only; everything else is broadcast to the session.
type EventConsumer struct {
	connectionManager *ConnectionManager
	bus               bus.Bus
}

// NewEventConsumer creates an event consumer over the given bus.
func NewEventConsumer(cm *ConnectionManager, eventBus bus.Bus) *EventConsumer {
	return &EventConsumer{
		connectionManager: cm,
		bus:               eventBus,
	}
}

// Start subscribes to the bus. Delivery runs until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	return ec.bus.Subscribe(ctx, ec.handleEvent)
}

func (ec *EventConsumer) handleEvent(_ context.Context, evt *events.Event) {
	sessionID, err := uuid.Parse(evt.SessionID)
	if err != nil {
		log.Error().
			Str("session_id", evt.SessionID).
			Str("event_type", string(evt.Type)).
			Msg("dropping event with invalid session id")
		return
	}

	if evt.ParticipantID != "" {
		ec.connectionManager.BroadcastToParticipant(sessionID, evt.ParticipantID, evt)
		return
	}
	ec.connectionManager.BroadcastToSession(sessionID, evt)
}
