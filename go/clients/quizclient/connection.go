package quizclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/events"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
	outboundBuffer     = 64
)

// SessionConnection is the participant's WebSocket link to a session. It
// reconnects with backoff until disposed, resynchronizes the state machine
// from the HTTP snapshot after every reconnect, and answers server pings
// with pong messages. Events are dispatched to the state machine in
// arrival order.
type SessionConnection struct {
	client  *QuizClient
	machine *StateMachine
	wsURL   string

	mu   sync.Mutex
	conn *websocket.Conn

	// outbound preserves send order across a single connection's lifetime.
	outbound chan []byte

	disposeOnce sync.Once
	done        chan struct{}
}

// NewSessionConnection creates a connection bound to the client's auth
// token. Call Connect to start it and Dispose to tear it down.
func NewSessionConnection(client *QuizClient, machine *StateMachine) *SessionConnection {
	client.BindStateMachine(machine)
	return &SessionConnection{
		client:   client,
		machine:  machine,
		wsURL:    websocketURL(client.baseURL, client.Token()),
		outbound: make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
	}
}

// Connect runs the connection until Dispose is called or ctx is cancelled.
// Blocks; run it in its own goroutine.
func (sc *SessionConnection) Connect(ctx context.Context) {
	defer sc.Dispose()

	delay := reconnectBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, sc.wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", delay).Msg("session connection failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-sc.done:
				return
			case <-time.After(delay):
			}
			delay = nextDelay(delay)
			continue
		}
		delay = reconnectBaseDelay

		sc.mu.Lock()
		sc.conn = conn
		sc.mu.Unlock()

		// The snapshot replaces everything missed while disconnected; the
		// event stream then carries on from live traffic.
		if state, err := sc.client.GetSessionState(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to resync session state")
		} else {
			sc.machine.Resync(state)
		}

		writerDone := make(chan struct{})
		go sc.writeLoop(conn, writerDone)
		sc.readLoop(conn)
		conn.Close()
		close(writerDone)

		select {
		case <-ctx.Done():
			return
		case <-sc.done:
			return
		default:
			log.Info().Msg("session connection lost, reconnecting")
		}
	}
}

// Dispose permanently closes the connection. Idempotent; every exit path
// of the owning client must call it.
func (sc *SessionConnection) Dispose() {
	sc.disposeOnce.Do(func() {
		close(sc.done)
		sc.mu.Lock()
		if sc.conn != nil {
			sc.conn.Close()
		}
		sc.mu.Unlock()
		sc.machine.Close()
	})
}

func (sc *SessionConnection) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var evt events.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Debug().Msg("ignoring malformed server message")
			continue
		}

		if evt.Type == events.EventTypePing {
			sc.sendPong()
			continue
		}
		sc.machine.HandleEvent(&evt)
	}
}

func (sc *SessionConnection) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sc.done:
			return
		case msg := <-sc.outbound:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (sc *SessionConnection) sendPong() {
	msg, err := json.Marshal(events.ClientMessage{Type: events.ClientMessagePong})
	if err != nil {
		return
	}
	select {
	case sc.outbound <- msg:
	default:
		log.Warn().Msg("outbound buffer full, dropping pong")
	}
}

func websocketURL(baseURL, token string) string {
	wsBase := baseURL
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return wsBase + "/ws/session?token=" + url.QueryEscape(token)
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return d
}
