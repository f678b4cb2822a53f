package live

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/event"
)

// clientBuffer is how many messages may queue for a slow client before new
// ones are dropped.
const clientBuffer = 32

type client struct {
	send   chan ServerMessage
	cancel context.CancelFunc
}

// Hub fans domain events out to every connected WebSocket client. It is an
// eventbus handler and an http.Handler.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	origins []string
	logger  *zap.Logger
}

// NewHub creates a hub accepting connections from originPatterns
// (websocket.AcceptOptions syntax). Nil allows same-origin only.
func NewHub(originPatterns []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		origins: originPatterns,
		logger:  logger,
	}
}

// HandleEvent broadcasts a "changed" message for evt's subject.
func (h *Hub) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	subj := evt.Subject()
	h.broadcast(ServerMessage{
		Type: "changed",
		Data: ChangedData{Kind: subj.EntityType, ID: subj.EntityID, Action: evt.Action},
	})
	return nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.cancel()
	}
}

func (h *Hub) broadcast(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("live: client buffer full, dropping message", zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) register(cancel context.CancelFunc) *client {
	c := &client{send: make(chan ServerMessage, clientBuffer), cancel: cancel}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("live: websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := h.register(cancel)
	defer h.unregister(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, c)
	}()
	defer func() { <-done }()
	defer cancel()

	h.enqueue(c, ServerMessage{Type: "ready"})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				h.logger.Debug("live: connection closed", zap.Int("status", int(status)))
			}
			return
		}
		switch msg.Type {
		case "ping":
			h.enqueue(c, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.enqueue(c, ServerMessage{
				Type:      "error",
				RequestID: msg.ID,
				Data:      ErrorData{Code: "unknown_type", Message: fmt.Sprintf("unknown message type: %s", msg.Type)},
			})
		}
	}
}

func (h *Hub) enqueue(c *client, msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				h.logger.Debug("live: write failed", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}
