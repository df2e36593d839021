package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
)

func TestInProcBusFansOutToAllSubscribers(t *testing.T) {
	b := NewInProcBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan *events.Event, 1)
	second := make(chan *events.Event, 1)
	require.NoError(t, b.Subscribe(ctx, func(_ context.Context, evt *events.Event) { first <- evt }))
	require.NoError(t, b.Subscribe(ctx, func(_ context.Context, evt *events.Event) { second <- evt }))

	evt, err := events.New(uuid.New(), events.EventTypeSessionStarted, time.Now(), events.SessionStartedPayload{TotalQuestions: 3})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, evt))

	for _, ch := range []chan *events.Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, evt.ID, got.ID)
			assert.Equal(t, events.EventTypeSessionStarted, got.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestInProcBusDropsSubscriberAfterCancel(t *testing.T) {
	b := NewInProcBus()
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan *events.Event, 1)
	require.NoError(t, b.Subscribe(ctx, func(_ context.Context, evt *events.Event) { received <- evt }))
	cancel()

	// The subscriber goroutine unsubscribes on cancellation; publishing
	// afterwards must not deliver.
	time.Sleep(20 * time.Millisecond)
	evt, err := events.New(uuid.New(), events.EventTypePing, time.Now(), events.PingPayload{})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), evt))

	select {
	case <-received:
		t.Fatal("cancelled subscriber still received an event")
	case <-time.After(50 * time.Millisecond):
	}
}
