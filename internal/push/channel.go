// Package push maintains the live event connection to the crewdeck backend.
//
// The channel:
// 1. Holds at most one websocket connection per authenticated session
// 2. Dispatches inbound events through a single-consumer queue, one handler
//    at a time
// 3. Reconnects with a bounded attempt budget and fixed delay
// 4. Replays topic joins after every reconnect so scope membership survives
//    a transient connection
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// State represents the channel's connection state.
type State int

const (
	// StateDisconnected means no connection exists and none is being made.
	StateDisconnected State = iota
	// StateConnecting means the initial dial is in progress.
	StateConnecting
	// StateConnected means the connection is live and dispatching events.
	StateConnected
	// StateReconnecting means the connection dropped and the retry budget
	// has not run out yet.
	StateReconnecting
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Handler processes one inbound event payload. Handlers run to completion
// before the next event is dispatched; they are never invoked concurrently.
type Handler func(data json.RawMessage)

// Event is the wire frame exchanged with the backend.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventMessageNew is the inbound event carrying a full message payload.
const EventMessageNew = "message:new"

// Outbound events for topic subscription management.
const (
	EventChannelJoin  = "channel:join"
	EventChannelLeave = "channel:leave"
)

// Config holds channel configuration.
type Config struct {
	// URL is the websocket endpoint, e.g. "wss://api.example.com/ws".
	URL string

	// ReconnectAttempts bounds the retry budget after a failed dial or a
	// dropped connection (default: 5).
	ReconnectAttempts int

	// ReconnectDelay is the fixed wait between attempts (default: 2s).
	ReconnectDelay time.Duration

	// QueueSize is the inbound event buffer (default: 100). Events arriving
	// while the buffer is full are dropped with a warning.
	QueueSize int

	// Logger for connection activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReconnectAttempts: 5,
		ReconnectDelay:    2 * time.Second,
		QueueSize:         100,
		Logger:            log.New(os.Stderr, "[push] ", log.LstdFlags),
	}
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	event string
	id    uint64
}

// Channel is the push connection. The handler registry and joined-topic set
// persist across reconnects and across Disconnect/Connect cycles; only the
// live connection is transient.
type Channel struct {
	config *Config

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	token    string
	handlers map[string][]handlerEntry
	joined   map[string]bool
	nextID   uint64
	queue    chan Event
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewChannel creates a push channel. Use Connect to establish the link.
func NewChannel(config *Config) *Channel {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReconnectAttempts <= 0 {
		config.ReconnectAttempts = 5
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[push] ", log.LstdFlags)
	}
	return &Channel{
		config:   config,
		handlers: make(map[string][]handlerEntry),
		joined:   make(map[string]bool),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a handler for the named event. Handlers registered
// while disconnected are live as soon as a connection exists; no events are
// silently lost to registration timing.
func (c *Channel) Subscribe(event string, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: c.nextID, fn: fn})
	return &Subscription{event: event, id: c.nextID}
}

// Unsubscribe removes a previously registered handler. Unknown or already
// removed subscriptions are ignored.
func (c *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.handlers[sub.event]
	for i, entry := range entries {
		if entry.id == sub.id {
			c.handlers[sub.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Connect establishes the connection, authenticating with the given bearer
// token. A failed first dial consumes the reconnect budget before giving
// up. Calling Connect while a connection exists or is being made is a no-op.
func (c *Channel) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.token = token
	c.queue = make(chan Event, c.config.QueueSize)
	c.done = make(chan struct{})
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.config.Logger.Printf("Initial dial failed: %v", err)
		conn, err = c.redial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			return err
		}
	}

	c.wg.Add(1)
	go c.dispatchLoop()

	c.attach(conn)
	return nil
}

// Disconnect tears down the live connection. It is idempotent: calling it
// repeatedly or while already disconnected is safe. Handlers and joined
// topics are retained for the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	done := c.done
	c.mu.Unlock()

	close(done)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.wg.Wait()

	c.config.Logger.Println("Disconnected")
}

// Emit sends an event to the server. While not connected this is a no-op:
// state-changing actions must go through the REST client instead, so there
// is nothing useful to queue.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		data = encoded
	}

	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Join subscribes to a broadcast topic. The topic is remembered and the
// join is replayed after every reconnect.
func (c *Channel) Join(topic string) error {
	c.mu.Lock()
	c.joined[topic] = true
	c.mu.Unlock()
	return c.Emit(EventChannelJoin, map[string]string{"channel": topic})
}

// Leave unsubscribes from a broadcast topic and forgets it.
func (c *Channel) Leave(topic string) error {
	c.mu.Lock()
	delete(c.joined, topic)
	c.mu.Unlock()
	return c.Emit(EventChannelLeave, map[string]string{"channel": topic})
}

// dial makes a single connection attempt.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	c.mu.Lock()
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.config.URL, err)
	}
	return conn, nil
}

// redial retries the dial with a fixed delay until it succeeds, the budget
// runs out, or the channel is shut down.
func (c *Channel) redial(ctx context.Context) (*websocket.Conn, error) {
	c.setState(StateReconnecting)

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	for attempt := 1; attempt <= c.config.ReconnectAttempts; attempt++ {
		select {
		case <-time.After(c.config.ReconnectDelay):
		case <-done:
			return nil, fmt.Errorf("channel closed during reconnect")
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err == nil {
			c.config.Logger.Printf("Reconnected on attempt %d", attempt)
			return conn, nil
		}
		c.config.Logger.Printf("Reconnect attempt %d/%d failed: %v",
			attempt, c.config.ReconnectAttempts, err)
	}

	return nil, fmt.Errorf("reconnect budget exhausted after %d attempts", c.config.ReconnectAttempts)
}

// attach installs a live connection, starts its read loop, and replays
// topic joins.
func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	select {
	case <-c.done:
		// Disconnect raced the reconnect; drop the fresh connection.
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return
	default:
	}
	c.conn = conn
	c.state = StateConnected
	topics := make([]string, 0, len(c.joined))
	for topic := range c.joined {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)

	for _, topic := range topics {
		if err := c.Emit(EventChannelJoin, map[string]string{"channel": topic}); err != nil {
			c.config.Logger.Printf("Failed to rejoin %s: %v", topic, err)
		}
	}
}

// readLoop reads frames from one connection and queues them for dispatch.
// When the connection drops it hands off to the reconnect path unless the
// channel was shut down deliberately.
func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			c.config.Logger.Printf("Connection lost: %v", err)
			go c.recover()
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.config.Logger.Printf("Dropping malformed frame: %v", err)
			continue
		}

		select {
		case c.queue <- event:
		case <-done:
			return
		default:
			c.config.Logger.Printf("Warning: event queue full, dropping %s", event.Event)
		}
	}
}

// recover runs the bounded reconnect after a dropped connection.
func (c *Channel) recover() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	conn, err := c.redial(context.Background())
	if err != nil {
		c.config.Logger.Printf("Giving up: %v", err)
		// Stop the dispatch loop too, unless Disconnect already did.
		c.mu.Lock()
		if c.state != StateDisconnected {
			c.state = StateDisconnected
			close(c.done)
		}
		c.mu.Unlock()
		return
	}
	c.attach(conn)
}

// dispatchLoop is the single consumer of the inbound queue. Handlers for an
// event run sequentially and to completion before the next event is taken,
// so no two handlers ever overlap.
func (c *Channel) dispatchLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	done := c.done
	queue := c.queue
	c.mu.Unlock()

	for {
		select {
		case <-done:
			return

		case event := <-queue:
			c.mu.Lock()
			entries := make([]handlerEntry, len(c.handlers[event.Event]))
			copy(entries, c.handlers[event.Event])
			c.mu.Unlock()

			for _, entry := range entries {
				entry.fn(event.Data)
			}
		}
	}
}

// setState updates the connection state under lock.
func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
