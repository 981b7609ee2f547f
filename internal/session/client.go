package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"codenow/internal/models"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	// PongWait is how long the reader waits for any frame, pongs included.
	PongWait   = 60 * time.Second
	pingPeriod = (PongWait * 9) / 10
)

// Client is the outbound half of one connection. Send only enqueues; WritePump
// owns the socket writes so a slow peer never blocks the session.
type Client struct {
	Conn *websocket.Conn
	mu   sync.Mutex
	hook func(models.WSFrame)
	send chan models.WSFrame
	done chan struct{}
	once sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		send: make(chan models.WSFrame, sendBuffer),
		done: make(chan struct{}),
	}
}

// SetSendHook replaces the queued WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send queues a frame. It returns false when the client is closed or its queue
// is full; the caller decides what to do with a lagging peer.
func (c *Client) Send(frame models.WSFrame) bool {
	c.mu.Lock()
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
		return true
	}
	if c.Conn == nil {
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// WritePump drains the queue onto the socket and keeps the peer alive with
// pings. It returns when the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
