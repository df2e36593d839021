// Package bus carries session events from the session services to the
// gateway. Two implementations exist: an in-process bus for single-binary
// deployments and tests, and a NATS JetStream bus for multi-instance
// deployments.
package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
)

// Handler consumes one session event.
type Handler func(ctx context.Context, evt *events.Event)

// Bus publishes session events and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, evt *events.Event) error
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// InProcBus is an in-memory bus. Events are fanned out to each subscriber
// through a buffered channel; a full subscriber drops the event rather than
// blocking publishers.
type InProcBus struct {
	mu   sync.RWMutex
	subs []chan *events.Event
}

// NewInProcBus creates an in-process bus.
func NewInProcBus() *InProcBus {
	return &InProcBus{}
}

// Publish delivers the event to all current subscribers.
func (b *InProcBus) Publish(ctx context.Context, evt *events.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			log.Warn().
				Str("event_type", string(evt.Type)).
				Str("session_id", evt.SessionID).
				Msg("in-proc subscriber full, dropping event")
		}
	}
	return nil
}

// Subscribe registers h and consumes events until ctx is cancelled.
func (b *InProcBus) Subscribe(ctx context.Context, h Handler) error {
	ch := make(chan *events.Event, 256)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.unsubscribe(ch)
				return
			case evt := <-ch:
				h(ctx, evt)
			}
		}
	}()
	return nil
}

// Close is a no-op for the in-process bus.
func (b *InProcBus) Close() error {
	return nil
}

func (b *InProcBus) unsubscribe(ch chan *events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
