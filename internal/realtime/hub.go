package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	busPublishTimeout = 5 * time.Second
)

// Events generated by the hub itself.
const (
	EventObserverCount   = "observer_count"
	EventSessionSnapshot = "session:snapshot"
)

// SnapshotFunc loads the current state of a session for a newly joined observer.
type SnapshotFunc func(ctx context.Context, sessionID uuid.UUID) (interface{}, error)

// Hub maintains session_id -> set of observer connections and broadcasts messages.
// With a Bus, events published on any instance reach the observers of every instance.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel bus subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	bus      Bus
	snapshot SnapshotFunc
}

// Bus carries encoded session events between server instances. It moves opaque bytes;
// the hub owns the envelope format.
type Bus interface {
	Publish(ctx context.Context, sessionID uuid.UUID, body []byte) error
	Subscribe(sessionID uuid.UUID, deliver func(body []byte)) (cancel func(), err error)
}

// busEvent is the envelope exchanged over the Bus.
type busEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Sent  int64           `json:"sent_ms"`
}

// NewHub creates a new WebSocket hub. bus may be nil for a single instance.
func NewHub(logger *zap.Logger, bus Bus) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		bus:      bus,
	}
}

// SetSnapshotFunc sets the loader used to answer an observer's snapshot request.
func (h *Hub) SetSnapshotFunc(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Register adds a client to a session room. The first client of a session starts the bus subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.bus != nil {
			sessionID := c.SessionID
			cancel, err := h.bus.Subscribe(sessionID, func(body []byte) {
				h.deliver(sessionID, body)
			})
			if err != nil {
				h.logger.Warn("bus subscribe failed", zap.String("session_id", sessionID.String()), zap.Error(err))
			} else {
				h.subs[sessionID] = cancel
			}
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("observer joined session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session room. The last client out cancels the bus subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("observer left session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// BroadcastToSession sends a message to all clients in a session (local only).
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[sessionID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToSession delivers an event to every observer of a session on every instance.
// With a bus it only publishes, and the subscription performs the broadcast once per
// instance (including this one); otherwise it broadcasts locally.
func (h *Hub) PublishToSession(sessionID uuid.UUID, event string, payload interface{}) {
	if h.bus == nil {
		h.BroadcastToSession(sessionID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	body, err := json.Marshal(busEvent{Event: event, Data: data, Sent: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Warn("encode bus event", zap.String("event", event), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), busPublishTimeout)
	defer cancel()
	if err := h.bus.Publish(ctx, sessionID, body); err != nil {
		h.logger.Warn("bus publish failed, broadcasting locally", zap.String("event", event), zap.Error(err))
		h.BroadcastToSession(sessionID, event, data)
	}
}

// deliver unwraps an event received from the bus and broadcasts it locally.
func (h *Hub) deliver(sessionID uuid.UUID, body []byte) {
	var ev busEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Event == "" {
		h.logger.Debug("drop malformed bus event", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	h.BroadcastToSession(sessionID, ev.Event, ev.Data)
}

// ObserverCount returns the number of connected clients in a session on this instance.
func (h *Hub) ObserverCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// sendSnapshot answers one client's snapshot request.
func (h *Hub) sendSnapshot(ctx context.Context, c *Client) {
	h.mu.RLock()
	fn := h.snapshot
	h.mu.RUnlock()
	if fn == nil {
		return
	}
	snap, err := fn(ctx, c.SessionID)
	if err != nil {
		h.logger.Warn("load session snapshot", zap.String("session_id", c.SessionID.String()), zap.Error(err))
		return
	}
	data, err := encode(snap)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: EventSessionSnapshot, Data: data}:
	default:
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
