package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bybench/internal/config"
	"bybench/internal/ids"
)

// RoomAuthorizer decides whether a user may join a conversation room.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, room, userID string) error
}

// Hub tracks presence and room membership for one process.
//
// Presence holds a single connection per user; the latest registration wins
// and the displaced connection keeps any room membership it already had.
type Hub struct {
	cfg  config.RealtimeConfig
	log  zerolog.Logger
	auth RoomAuthorizer

	mu       sync.RWMutex
	clients  map[string]*Client
	presence map[string]*Client
	rooms    map[string]map[string]*Client
	joined   map[string]map[string]struct{}
}

func NewHub(cfg config.RealtimeConfig, log zerolog.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 54 * time.Second
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 10 / 9
	}
	return &Hub{
		cfg:      cfg,
		log:      log,
		clients:  make(map[string]*Client),
		presence: make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		joined:   make(map[string]map[string]struct{}),
	}
}

// SetAuthorizer wires the room gate. It must be called before serving.
func (h *Hub) SetAuthorizer(auth RoomAuthorizer) {
	h.auth = auth
}

// Serve registers an upgraded connection for userID and blocks until it closes.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := newClient(h, conn, ids.NewSortable(), userID, h.cfg.SendBuffer)
	h.Register(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.presence[c.UserID] = c
	h.mu.Unlock()

	h.log.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("websocket connected")
	h.broadcastOnlineUsers()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	if h.presence[c.UserID] == c {
		delete(h.presence, c.UserID)
	}
	for room := range h.joined[c.ID] {
		members := h.rooms[room]
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, c.ID)
	h.mu.Unlock()

	c.close()
	h.log.Info().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("websocket disconnected")
	h.broadcastOnlineUsers()
}

// Join adds c to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c

	rooms, ok := h.joined[c.ID]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[c.ID] = rooms
	}
	rooms[room] = struct{}{}
}

// SendToRoom delivers to connections currently in room. Delivery is best
// effort; clients that are gone or backed up miss the event.
func (h *Hub) SendToRoom(room, event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.log.Warn().Str("conn_id", c.ID).Str("room", room).Str("event", event).Msg("event dropped")
		}
	}
}

// Broadcast delivers to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// OnlineUsers returns the sorted ids of users with a live presence entry.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.presence))
	for id := range h.presence {
		users = append(users, id)
	}
	h.mu.RUnlock()

	sort.Strings(users)
	return users
}

// ConnectionFor returns the connection id presence currently maps userID to.
func (h *Hub) ConnectionFor(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.presence[userID]
	if !ok {
		return "", false
	}
	return c.ID, true
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// HandleFrame dispatches one client frame.
func (h *Hub) HandleFrame(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.SendEvent(EventError, ErrorPayload{Message: "malformed frame"})
		return
	}

	switch frame.Event {
	case EventJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.ConversationID == "" {
			c.SendEvent(EventError, ErrorPayload{Event: frame.Event, Message: "conversationId is required"})
			return
		}
		if h.auth != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := h.auth.CanJoin(ctx, payload.ConversationID, c.UserID)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("conn_id", c.ID).Str("conversation_id", payload.ConversationID).Msg("join refused")
				c.SendEvent(EventError, ErrorPayload{Event: frame.Event, Message: "cannot join this conversation"})
				return
			}
		}
		h.Join(c, payload.ConversationID)
	case EventGetOnlineUsers:
		c.SendEvent(EventOnlineUsers, h.OnlineUsers())
	default:
		c.SendEvent(EventError, ErrorPayload{Event: frame.Event, Message: "unknown event"})
	}
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.presence = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.joined = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) broadcastOnlineUsers() {
	h.Broadcast(EventOnlineUsers, h.OnlineUsers())
}
