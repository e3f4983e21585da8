// Package ws provides the WebSocket streaming chat endpoints.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a WebSocket connection with locked writes and per-write
// deadlines. Each session owns its Conn exclusively; the lock only
// serializes turn writes against the ping ticker.
type Conn struct {
	ws           *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

// NewConn wraps an upgraded connection.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// WriteFrame writes one data frame.
func (c *Conn) WriteFrame(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

// WritePing writes a ping control frame.
func (c *Conn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// CloseWith sends a close frame with the given code, then closes the
// underlying connection.
func (c *Conn) CloseWith(code int, reason string) error {
	c.mu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.mu.Unlock()
	return c.ws.Close()
}

// Close closes the underlying connection without a close frame.
func (c *Conn) Close() error { return c.ws.Close() }

// ReadMessage reads the next data frame.
func (c *Conn) ReadMessage() (int, []byte, error) { return c.ws.ReadMessage() }

// SetReadDeadline sets the read deadline for the connection.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

// SetReadLimit caps the inbound frame size.
func (c *Conn) SetReadLimit(limit int64) { c.ws.SetReadLimit(limit) }

// SetPongHandler installs the pong handler.
func (c *Conn) SetPongHandler(h func(string) error) { c.ws.SetPongHandler(h) }
