package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"schoolbus-backend/internal/middleware"
	"schoolbus-backend/internal/tracking"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	UserID   string
	UserRole string // User's role: "driver" or "admin"
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte

	// Device is set for drivers only
	Device *Device

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client
func NewClient(user middleware.UserClaims, conn *websocket.Conn, hub *Hub) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		UserID:   user.UserID,
		UserRole: user.Role,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, sendBufferSize),
	}
	if user.Role == middleware.RoleDriver {
		c.Device = NewDevice(user.UserID, c.Send)
	}
	return c
}

// Send queues a typed message without blocking. It reports false when the
// connection is closed or its buffer is full.
func (c *Client) Send(msgType string, data interface{}) bool {
	payload, err := json.Marshal(OutgoingMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		log.Printf("❌ Failed to marshal %s message: %v", msgType, err)
		return false
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue so WritePump sends a close frame
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if c.Device != nil {
			c.Device.Close()
			if c.hub.controller != nil {
				c.hub.controller.DeviceDisconnected(c.UserID, c.Device)
			}
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		c.handle(msg)
	}
}

func (c *Client) handle(msg IncomingMessage) {
	switch msg.Type {
	case TypePing:
		c.Send(TypePong, nil)

	case TypeConfirmArrival:
		c.handleConfirmArrival(msg)

	default:
		if c.Device == nil {
			log.Printf("⚠️  Ignoring %s from non-driver %s", msg.Type, c.UserID)
			return
		}
		if err := c.Device.HandleMessage(msg); err != nil {
			log.Printf("⚠️  Driver %s: %v", c.UserID, err)
		}
	}
}

func (c *Client) handleConfirmArrival(msg IncomingMessage) {
	if c.Device == nil || c.hub.controller == nil {
		return
	}
	var answer confirmArrival
	if err := json.Unmarshal(msg.Data, &answer); err != nil {
		log.Printf("❌ Invalid confirm_arrival from driver %s: %v", c.UserID, err)
		return
	}

	err := c.hub.controller.ResolveConfirmation(c.UserID, answer.Confirmed)
	switch {
	case err == nil:
	case errors.Is(err, tracking.ErrNoPendingConfirmation), errors.Is(err, tracking.ErrNotTracking):
		log.Printf("⚠️  Stale confirm_arrival from driver %s: %v", c.UserID, err)
	default:
		log.Printf("❌ confirm_arrival from driver %s failed: %v", c.UserID, err)
		c.Device.ShowError("Could not record your answer")
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON message per frame so clients can parse each frame directly
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
