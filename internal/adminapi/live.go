package adminapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/logging"
)

const (
	// clientBuffer is how many events a slow client may lag behind before
	// events are dropped for it.
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// LiveMessage is the envelope of every server-to-client live message.
type LiveMessage struct {
	Type string `json:"type"` // "hello", "invalidated"
	Data any    `json:"data,omitempty"`
}

// HelloData is sent once the subscription is active.
type HelloData struct {
	Entity string `json:"entity,omitempty"`
}

type liveClient struct {
	entity string
	events chan eventbus.Event
}

// Hub fans invalidation events out to websocket clients so open admin
// views know to refetch. It is an eventbus.Handler.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		log:     logging.OrNop(logger).Named("live"),
		clients: make(map[*liveClient]struct{}),
	}
}

// HandleEvent forwards evt to every client watching its entity, dropping
// it for clients whose buffer is full.
func (h *Hub) HandleEvent(_ context.Context, evt eventbus.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.entity != "" && c.entity != evt.Entity {
			continue
		}
		select {
		case c.events <- evt:
		default:
			h.log.Warn("client lagging, dropping event",
				zap.String("event_id", evt.ID),
				zap.String("entity", evt.Entity))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(entity string) *liveClient {
	c := &liveClient{entity: entity, events: make(chan eventbus.Event, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *liveClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades to a websocket and streams events until the client
// goes away. The optional entity query parameter narrows the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	entity := r.URL.Query().Get("entity")
	c := h.add(entity)
	defer h.remove(c)

	// The stream is one-way; CloseRead handles control frames and cancels
	// ctx when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	if err := h.send(ctx, conn, LiveMessage{Type: "hello", Data: HelloData{Entity: entity}}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt := <-c.events:
			if err := h.send(ctx, conn, LiveMessage{Type: "invalidated", Data: evt}); err != nil {
				return
			}
		}
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, msg LiveMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			h.log.Debug("live write failed", zap.Error(err))
		}
		return err
	}
	return nil
}
