package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Envelope is a routed room event. Target limits delivery to one connection, Except skips one.
type Envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Target string          `json:"target,omitempty"`
	Except string          `json:"except,omitempty"`
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance delivery).
type RedisPublisher interface {
	PublishRoomEvent(roomID string, env Envelope) error
}

// RedisSubscriber subscribes to room channels and invokes handler for incoming envelopes.
type RedisSubscriber interface {
	SubscribeRoom(roomID string, handler func(env Envelope)) (cancel func(), err error)
}

// Hub tracks the local connections of each room and delivers room events to them.
// With Redis configured, every event goes through the room channel so that each instance
// delivers to its own connections exactly once.
type Hub struct {
	clients  map[string]*Client            // connID -> client
	rooms    map[string]map[string]*Client // roomID -> connID -> client
	subs     map[string]func()             // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for single-instance mode.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register makes a connection addressable.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("conn_id", c.ID))
}

// Unregister drops the connection from every room and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for roomID, m := range h.rooms {
		if _, ok := m[c.ID]; ok {
			h.detachLocked(roomID, c.ID)
		}
	}
	close(c.send)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("conn_id", c.ID))
}

// Attach adds a registered connection to a room's local delivery set. Starts the Redis
// subscription for the room on its first local connection.
func (h *Hub) Attach(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(roomID, func(env Envelope) {
				h.deliver(roomID, env)
			})
			if err != nil {
				h.logger.Warn("room subscribe failed", zap.String("room_id", roomID), zap.Error(err))
			} else {
				h.subs[roomID] = cancel
			}
		}
	}
	h.rooms[roomID][connID] = c
}

// Detach removes a connection from a room. Cancels the Redis subscription when the last local
// connection leaves.
func (h *Hub) Detach(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(roomID, connID)
}

func (h *Hub) detachLocked(roomID, connID string) {
	m, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(m, connID)
	if len(m) > 0 {
		return
	}
	delete(h.rooms, roomID)
	if cancel, ok := h.subs[roomID]; ok {
		cancel()
		delete(h.subs, roomID)
	}
}

// SendTo delivers an event to one connection of a room.
func (h *Hub) SendTo(roomID, connID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.route(roomID, Envelope{Event: event, Data: data, Target: connID})
}

// Broadcast delivers an event to every connection of a room except exceptConnID.
func (h *Hub) Broadcast(roomID, exceptConnID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.route(roomID, Envelope{Event: event, Data: data, Except: exceptConnID})
}

// route publishes to Redis only, so the subscriber callback performs delivery once on every
// instance including this one. Falls back to local delivery if publishing fails.
func (h *Hub) route(roomID string, env Envelope) {
	if h.redis != nil {
		err := h.redis.PublishRoomEvent(roomID, env)
		if err == nil {
			return
		}
		h.logger.Warn("room publish failed, delivering locally", zap.String("room_id", roomID), zap.Error(err))
	}
	h.deliver(roomID, env)
}

func (h *Hub) deliver(roomID string, env Envelope) {
	msg := WSMessage{Event: env.Event, Data: env.Data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.rooms[roomID] {
		if env.Target != "" && id != env.Target {
			continue
		}
		if id == env.Except {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("send buffer full, dropping", zap.String("conn_id", id), zap.String("event", env.Event))
		}
	}
}

// LocalCount returns the number of connections in a room on this instance.
func (h *Hub) LocalCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
