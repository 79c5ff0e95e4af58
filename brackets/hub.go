package brackets

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types pushed to spectators of a room.
const (
	MessageRoomUpdated = "ROOM_UPDATED"
	MessageMatchLive   = "MATCH_LIVE"
	MessageMatchResult = "MATCH_RESULT"
	MessageChampion    = "CHAMPION_DECIDED"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type WebSocketMessage struct {
	Type    string `json:"type"`
	RoomID  int    `json:"room_id"`
	Payload any    `json:"payload"`
}

// Client is one spectator connection subscribed to a single room.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	Room int

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, roomID int) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Room: roomID,
	}
}

// trySend queues msg unless the client is closed or its buffer is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// Hub fans room state out to every spectator of that room. Run must be
// started before clients register.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[int]map[*Client]struct{}
	mu     sync.RWMutex
	logger *slog.Logger
	done   chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[int]map[*Client]struct{}),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]struct{})
			}
			h.rooms[client.Room][client] = struct{}{}
			n := len(h.rooms[client.Room])
			h.mu.Unlock()
			h.logger.Debug("spectator joined", slog.Int("room_id", client.Room), slog.String("client_id", client.ID), slog.Int("spectators", n))

		case client := <-h.Unregister:
			h.remove(client)

		case <-h.done:
			h.mu.Lock()
			for roomID, clients := range h.rooms {
				for client := range clients {
					client.close()
				}
				delete(h.rooms, roomID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client channel and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	client.close()
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.Room)
	}
	h.logger.Debug("spectator left", slog.Int("room_id", client.Room), slog.String("client_id", client.ID))
}

// Spectators returns the number of clients watching roomID.
func (h *Hub) Spectators(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom sends one message to all spectators of roomID. Slow
// clients whose buffer is full miss the message.
func (h *Hub) BroadcastToRoom(roomID int, msgType string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	data, err := json.Marshal(WebSocketMessage{Type: msgType, RoomID: roomID, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.Int("room_id", roomID), slog.Any("error", err))
		return
	}

	for client := range clients {
		if !client.trySend(data) {
			h.logger.Warn("dropping message for slow spectator", slog.Int("room_id", roomID), slog.String("client_id", client.ID))
		}
	}
}

// SendTo queues one message for a single client, used for the initial snapshot.
func (h *Hub) SendTo(client *Client, msgType string, payload any) {
	data, err := json.Marshal(WebSocketMessage{Type: msgType, RoomID: client.Room, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.Int("room_id", client.Room), slog.Any("error", err))
		return
	}
	if !client.trySend(data) {
		h.logger.Warn("dropping message for slow spectator", slog.Int("room_id", client.Room), slog.String("client_id", client.ID))
	}
}

// ReadPump drains and ignores inbound frames so control frames are handled.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("spectator connection closed unexpectedly", slog.Int("room_id", c.Room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("spectator write failed", slog.String("client_id", c.ID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
