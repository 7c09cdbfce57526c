package inboxws

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Webizinnovation/ServiceAppBack/internal/inbox"
	"github.com/Webizinnovation/ServiceAppBack/internal/models"
	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans inbox snapshots and badge updates out to the connected UI
// clients of each viewer. It also drives the provider availability
// flag: a viewer is online while at least one socket is attached.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *push
	presence   presenceTracker
	logger     *zap.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type presenceTracker interface {
	SetOnline(ctx context.Context, id int64, online bool) error
}

// Frame is one push to a UI client.
type Frame struct {
	Type  string            `json:"type"`
	Role  models.Role       `json:"role,omitempty"`
	Inbox *inbox.Snapshot   `json:"inbox,omitempty"`
	Badge *inbox.BadgeState `json:"badge,omitempty"`
}

type push struct {
	userID  string
	payload []byte
}

func NewHub(presence presenceTracker, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *push, 64),
		presence:   presence,
		logger:     logger,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
				h.setOnline(client.userID, true)
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
				h.setOnline(client.userID, false)
			}
		case p := <-h.broadcast:
			h.sendToUser(p.userID, p.payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// PushInbox implements sessions.FeedSink.
func (h *Hub) PushInbox(viewerID int64, role models.Role, snap inbox.Snapshot) {
	h.push(viewerID, &Frame{Type: "inbox", Role: role, Inbox: &snap})
}

// PushBadge implements sessions.FeedSink.
func (h *Hub) PushBadge(viewerID int64, state inbox.BadgeState) {
	h.push(viewerID, &Frame{Type: "badge", Badge: &state})
}

func (h *Hub) push(viewerID int64, frame *Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("inbox hub encode frame", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- &push{userID: strconv.FormatInt(viewerID, 10), payload: payload}:
	default:
		// Feed frames are snapshots; dropping one under backpressure is
		// safe because the next push carries the full state again.
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
		h.setOnline(userID, false)
	}
}

func (h *Hub) setOnline(userID string, online bool) {
	if h.presence == nil {
		return
	}

	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	if err := h.presence.SetOnline(context.Background(), id, online); err != nil {
		h.logger.Warn("presence update failed",
			zap.Int64("user_id", id),
			zap.Bool("online", online),
			zap.Error(err),
		)
	}
}

// ReadPump drains the socket until the peer goes away. The feed is
// one-way; client frames are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
