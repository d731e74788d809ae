// Package hub owns room membership and message fan-out for one process.
// It never touches storage: callers decide what to send, the hub decides
// who receives it.
package hub

import (
	"sync"

	"github.com/stormboard/stormboard/internal/observability"
)

// Client is one registered connection. Its outbox is drained by the
// transport writer; sends never block the sender.
type Client struct {
	ID     string
	outbox chan any
}

// Outbox exposes the delivery channel for the transport writer.
func (c *Client) Outbox() <-chan any { return c.outbox }

// Hub is the in-process room registry. Membership is scoped to this
// process's lifetime; there is no cross-process fan-out.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	roomsByCli map[string]map[string]struct{}
	outboxSize int
	metrics    *observability.Metrics
}

func New(outboxSize int, metrics *observability.Metrics) *Hub {
	if outboxSize <= 0 {
		outboxSize = 256
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		roomsByCli: make(map[string]map[string]struct{}),
		outboxSize: outboxSize,
		metrics:    metrics,
	}
}

// Register creates the client and its outbox. Registering an id twice
// replaces the previous client and closes its outbox.
func (h *Hub) Register(connID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[connID]; ok {
		h.removeLocked(old)
	}
	c := &Client{ID: connID, outbox: make(chan any, h.outboxSize)}
	h.clients[connID] = c
	return c
}

// Unregister closes the client's outbox and removes it from every room.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *Client) {
	for sessionID := range h.roomsByCli[c.ID] {
		delete(h.rooms[sessionID], c.ID)
		if len(h.rooms[sessionID]) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	delete(h.roomsByCli, c.ID)
	delete(h.clients, c.ID)
	close(c.outbox)
}

// Join adds the connection to a session's room.
func (h *Hub) Join(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[string]*Client)
	}
	h.rooms[sessionID][connID] = c
	if h.roomsByCli[connID] == nil {
		h.roomsByCli[connID] = make(map[string]struct{})
	}
	h.roomsByCli[connID][sessionID] = struct{}{}
}

// Leave removes the connection from a session's room without touching
// the client itself.
func (h *Hub) Leave(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[sessionID], connID)
	if len(h.rooms[sessionID]) == 0 {
		delete(h.rooms, sessionID)
	}
	delete(h.roomsByCli[connID], sessionID)
}

// Rooms returns the session ids the connection currently belongs to.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.roomsByCli[connID]))
	for sessionID := range h.roomsByCli[connID] {
		out = append(out, sessionID)
	}
	return out
}

// Members returns the connection ids currently in a session's room.
func (h *Hub) Members(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[sessionID]))
	for id := range h.rooms[sessionID] {
		out = append(out, id)
	}
	return out
}

// Broadcast sends msg to every room member except exclude (empty string
// excludes nobody). A full outbox drops the frame for that client only.
func (h *Hub) Broadcast(sessionID string, msg any, exclude string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for id, c := range h.rooms[sessionID] {
		if id == exclude {
			continue
		}
		if h.send(c, msg) {
			sent++
		}
	}
	if h.metrics != nil {
		h.metrics.BroadcastFanout.Observe(float64(sent))
	}
	return sent
}

// Unicast sends msg to one connection. Reports whether the target was
// registered; delivery itself is still fire-and-forget.
func (h *Hub) Unicast(connID string, msg any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	h.send(c, msg)
	return true
}

func (h *Hub) send(c *Client, msg any) bool {
	select {
	case c.outbox <- msg:
		return true
	default:
		// Keep websocket writes single-threaded; drop if the outbox is
		// saturated rather than blocking the whole room.
		if h.metrics != nil {
			h.metrics.DroppedFrames.WithLabelValues(typeName(msg)).Inc()
		}
		return false
	}
}

func typeName(msg any) string {
	type typed interface{ EventType() string }
	if t, ok := msg.(typed); ok {
		return t.EventType()
	}
	return "unknown"
}
