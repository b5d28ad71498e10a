package push

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// testHub is a minimal push backend for channel tests: it accepts websocket
// clients, records every frame they send, and can broadcast frames or drop
// connections on demand.
type testHub struct {
	t        *testing.T
	listener net.Listener
	server   *http.Server

	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	lastAuth string

	frames chan Event
}

func startHub(t *testing.T) *testHub {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	hub := &testHub{
		t:        t,
		listener: ln,
		conns:    make(map[*websocket.Conn]bool),
		frames:   make(chan Event, 64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)
	hub.server = &http.Server{Handler: mux}

	go func() { _ = hub.server.Serve(ln) }()
	t.Cleanup(hub.stop)

	return hub
}

func (h *testHub) url() string {
	return "ws://" + h.listener.Addr().String() + "/ws"
}

func (h *testHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.lastAuth = r.Header.Get("Authorization")
	h.mu.Unlock()

	go func() {
		defer h.removeConn(conn)
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			var event Event
			if json.Unmarshal(data, &event) == nil {
				h.frames <- event
			}
		}
	}()
}

func (h *testHub) removeConn(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// broadcast sends one frame to every connected client.
func (h *testHub) broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.t.Fatalf("Failed to marshal payload: %v", err)
	}
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.t.Fatalf("Failed to marshal frame: %v", err)
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, frame)
		cancel()
	}
}

// dropClients kills every live connection without stopping the server, so
// clients see a transient failure and reconnect.
func (h *testHub) dropClients() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "hub restart")
	}
}

func (h *testHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *testHub) authHeader() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastAuth
}

func (h *testHub) stop() {
	_ = h.server.Close()
}

// waitFrame waits for the next inbound frame with the given event name,
// skipping others.
func (h *testHub) waitFrame(event string, timeout time.Duration) (Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case frame := <-h.frames:
			if frame.Event == event {
				return frame, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}
