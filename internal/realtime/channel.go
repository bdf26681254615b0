// Package realtime owns the single websocket connection to the backend:
// join/leave subscriptions, typed inbound events, and the reconnect policy.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/apperr"
	"github.com/gabrielgstein-dev/fila-digital-client-app/internal/models"
)

type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "disconnected"
}

type EventKind string

const (
	EventTicketCalled EventKind = "ticket-called"
	EventTicketUpdate EventKind = "ticket-update"
	EventClientUpdate EventKind = "client-update"
	EventQueueUpdate  EventKind = "queue-update"
)

// Event is one inbound push message. All kinds arrive on the same channel so
// any number of consumers can be layered on top without clobbering each
// other's handlers.
type Event struct {
	Kind    EventKind
	Ticket  *models.Ticket
	Message string
	Raw     json.RawMessage
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ticketPayload struct {
	Ticket  *models.Ticket `json:"ticket"`
	Message string         `json:"message"`
}

type subscription struct {
	event string
	id    string
}

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 3 * time.Second
	pingInterval                = 20 * time.Second
	pongWait                    = 60 * time.Second
	writeWait                   = 5 * time.Second
)

// Channel is the RealtimeChannel: one socket per instance, only this type
// ever opens or closes it.
type Channel struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	url     string
	subs    []subscription
	closing bool

	writeMu sync.Mutex

	state  atomic.Int32
	events chan Event

	dialer         *websocket.Dialer
	maxAttempts    int
	reconnectDelay time.Duration
}

type Option func(*Channel)

// WithDialer swaps the websocket dialer, used by tests to count attempts.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithReconnectDelay shortens the fixed delay between reconnect attempts in
// tests. The attempt cap is not configurable.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		events:         make(chan Event, 32),
		dialer:         websocket.DefaultDialer,
		maxAttempts:    defaultMaxReconnectAttempts,
		reconnectDelay: defaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the socket. Calling it while a connection is live (or being
// established) is a no-op; a second socket is never opened.
func (c *Channel) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateConnected, StateConnecting, StateReconnecting:
		return nil
	}

	c.url = url
	c.closing = false
	return c.dialLocked(ctx)
}

// dialLocked dials and starts the pumps. Caller holds c.mu.
func (c *Channel) dialLocked(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return apperr.Wrap(apperr.KindConnectionFailed, "Não foi possível conectar ao WebSocket", err)
	}

	c.conn = conn
	done := make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)

	c.setState(StateConnected)
	log.Println("[ws] connected to", c.url)

	// Joins are additive; the server tolerates redundant ones, so simply
	// replaying the list restores fan-out after a reconnect.
	for _, sub := range c.subs {
		if err := c.writeFrame(conn, sub.event, sub.id); err != nil {
			log.Printf("[ws] resubscribe %s %s: %v", sub.event, sub.id, err)
		}
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				log.Printf("[ws] unexpected close: %v", err)
			}
			break
		}
		c.dispatch(data)
	}
	c.handleDisconnect(conn)
}

func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (c *Channel) dispatch(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("[ws] dropping unparseable frame: %v", err)
		return
	}

	ev := Event{Kind: EventKind(f.Event), Raw: f.Data}
	switch ev.Kind {
	case EventTicketCalled, EventTicketUpdate:
		var payload ticketPayload
		if err := json.Unmarshal(f.Data, &payload); err != nil || payload.Ticket == nil {
			log.Printf("[ws] %s without ticket payload", f.Event)
			return
		}
		ev.Ticket = payload.Ticket
		ev.Message = payload.Message
	case EventClientUpdate, EventQueueUpdate:
		// Payload carries no usable diff; consumers refetch.
	default:
		log.Printf("[ws] ignoring unknown event %q", f.Event)
		return
	}

	select {
	case c.events <- ev:
	default:
		log.Printf("[ws] event buffer full, dropping %s", ev.Kind)
	}
}

// handleDisconnect runs when the read loop exits. User-initiated disconnects
// stop here; anything else enters the reconnect loop.
func (c *Channel) handleDisconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.closing {
		c.mu.Unlock()
		c.setState(StateDisconnected)
		return
	}
	c.mu.Unlock()

	go c.reconnectLoop()
}

func (c *Channel) reconnectLoop() {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.setState(StateReconnecting)
		time.Sleep(c.reconnectDelay)

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			c.setState(StateDisconnected)
			return
		}
		err := c.dialLocked(context.Background())
		c.mu.Unlock()

		if err == nil {
			log.Printf("[ws] reconnected after %d attempt(s)", attempt)
			return
		}
		log.Printf("[ws] reconnect attempt %d/%d failed: %v", attempt, c.maxAttempts, err)
	}
	c.setState(StateFailed)
	log.Println("[ws] reconnect attempts exhausted")
}

// Events is the single multiplexed inbound queue. It is never closed while
// the channel may still reconnect; consumers should select on their own
// context.
func (c *Channel) Events() <-chan Event {
	return c.events
}

func (c *Channel) SubscribeToClient(identifier string) error {
	return c.subscribe("join-client", identifier)
}

func (c *Channel) SubscribeToQueue(queueID string) error {
	return c.subscribe("join-queue", queueID)
}

// subscribe sends the join and records it for replay on reconnect.
// Duplicates are sent as-is; the server is the source of truth for fan-out.
func (c *Channel) subscribe(event, id string) error {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.subs = append(c.subs, subscription{event: event, id: id})
	}
	c.mu.Unlock()

	if conn == nil {
		return apperr.New(apperr.KindConnectionFailed, "WebSocket não conectado")
	}
	return c.writeFrame(conn, event, id)
}

func (c *Channel) UnsubscribeFromClient(identifier string) error {
	return c.unsubscribe("join-client", "leave-client", identifier)
}

func (c *Channel) UnsubscribeFromQueue(queueID string) error {
	return c.unsubscribe("join-queue", "leave-queue", queueID)
}

func (c *Channel) unsubscribe(joinEvent, leaveEvent, id string) error {
	c.mu.Lock()
	conn := c.conn
	for i, sub := range c.subs {
		if sub.event == joinEvent && sub.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.writeFrame(conn, leaveEvent, id)
}

func (c *Channel) writeFrame(conn *websocket.Conn, event, data string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// Disconnect tears the socket down and forgets all subscriptions. Safe to
// call at any time, connected or not; it also stops a reconnect in progress.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.subs = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}
	c.setState(StateDisconnected)
}

func (c *Channel) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Channel) setState(s ConnectionState) {
	c.state.Store(int32(s))
}

func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}
