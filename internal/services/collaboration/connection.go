package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"collab-editor/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // must be less than pongWait
	maxMessageSize = 8 << 20
)

// ConnState is the lifecycle state of one client connection
type ConnState int

const (
	StateConnected ConnState = iota
	StateJoined
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection represents an active WebSocket client
// Learning: The send channel is never closed. Closing is signalled through done,
// so a broadcast racing with a disconnect can never panic on a closed channel.
type Connection struct {
	*models.Session
	Conn *websocket.Conn

	send      chan []byte // Buffered channel for outbound messages
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex // guards state, DocumentID and Identity
	state         ConnState
	authenticated bool
}

func newConnection(session *models.Session, ws *websocket.Conn, bufferSize int) *Connection {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Connection{
		Session:       session,
		Conn:          ws,
		send:          make(chan []byte, bufferSize),
		done:          make(chan struct{}),
		state:         StateConnected,
		authenticated: session.Identity != "",
	}
}

// State returns the current lifecycle state
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// binding returns the joined document and identity, if joined
func (c *Connection) binding() (docID, identity string, joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.DocumentID, c.Identity, c.state == StateJoined
}

// enqueue queues a frame without blocking.
// A full buffer means the client cannot keep up, so the connection is closed.
func (c *Connection) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		log.Printf("⚠️  Connection %s buffer full, closing connection", c.ID)
		c.close()
		return false
	}
}

func (c *Connection) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️  Failed to encode message for connection %s: %v", c.ID, err)
		return
	}
	c.enqueue(data)
}

func (c *Connection) sendSyncError(message string) {
	c.sendJSON(models.SyncErrorMessage{Type: models.EventSyncError, Message: message})
}

// close stops the write pump and the socket; safe to call many times
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// ReadPump reads frames from the WebSocket and hands them to the manager one at a time
// Learning: Each connection has its own goroutine reading from the WebSocket,
// so the frames of one client are processed strictly in order.
func (c *Connection) ReadPump(ctx context.Context, sm *SessionManager) {
	defer func() {
		sm.Disconnect(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		// Errors are reported to the client inside HandleMessage
		_ = sm.HandleMessage(ctx, c, message)
	}
}

// WritePump writes queued frames to the WebSocket
// Learning: Separate goroutine for writing prevents blocking on slow clients
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			// One JSON document per text frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
