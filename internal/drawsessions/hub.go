package drawsessions

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageTypeEvent  = "draw_event"
	MessageTypeView   = "view"
	MessageTypeClosed = "session_closed"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Message is what subscribers of a draw session receive
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Connection is one websocket subscribed to one draw session
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan Message
}

// Hub fans session messages out to websocket subscribers
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan Message
	register    chan *Connection
	unregister  chan *Connection
	closeTopic  chan string
	stop        chan struct{}
	stopOnce    sync.Once

	mu       sync.RWMutex
	count    map[string]int
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub and starts its loop
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan Message, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		closeTopic:  make(chan string),
		stop:        make(chan struct{}),
		count:       make(map[string]int),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
	go h.run()
	return h
}

// Publish queues a message for the session's subscribers. Messages are
// dropped when the hub is saturated.
func (h *Hub) Publish(sessionID, msgType string, data interface{}) {
	msg := Message{Type: msgType, SessionID: sessionID, Data: data, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	case <-h.stop:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", zap.String("session_id", sessionID))
	}
}

// CloseSession notifies and disconnects every subscriber of a session
func (h *Hub) CloseSession(sessionID string) {
	select {
	case h.closeTopic <- sessionID:
	case <-h.stop:
	}
}

// Subscribers returns the number of connections for a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count[sessionID]
}

// Stop closes every connection and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Serve upgrades the request and subscribes it to a session
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) (*Connection, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan Message, 64),
	}
	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		return nil, fmt.Errorf("hub stopped")
	}

	go h.readPump(c)
	go h.writePump(c)
	return c, nil
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
			h.adjust(c.SessionID, 1)
			h.logger.Debug("Connection registered", zap.String("conn_id", c.ID), zap.String("session_id", c.SessionID))

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.connections {
				if c.SessionID != msg.SessionID {
					continue
				}
				select {
				case c.Send <- msg:
				default:
					h.drop(c)
				}
			}

		case sessionID := <-h.closeTopic:
			closed := Message{Type: MessageTypeClosed, SessionID: sessionID, Timestamp: time.Now()}
			for c := range h.connections {
				if c.SessionID != sessionID {
					continue
				}
				select {
				case c.Send <- closed:
				default:
				}
				h.drop(c)
			}

		case <-h.stop:
			for c := range h.connections {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) drop(c *Connection) {
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	close(c.Send)
	h.adjust(c.SessionID, -1)
	h.logger.Debug("Connection unregistered", zap.String("conn_id", c.ID), zap.String("session_id", c.SessionID))
}

func (h *Hub) adjust(sessionID string, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count[sessionID] += delta
	if h.count[sessionID] <= 0 {
		delete(h.count, sessionID)
	}
}

// readPump only watches for the client going away; clients drive the
// session over HTTP
func (h *Hub) readPump(c *Connection) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Websocket read failed", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
