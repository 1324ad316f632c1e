package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when sending on a connection that is no longer
// open.
var ErrClosed = errors.New("connection closed")

// Conn is one physical transport session from a single client device.
// The registry is its sole owner; the transport itself is never shared.
type Conn struct {
	ID       string
	DeviceID string
	UserID   string

	CreatedAt time.Time

	transport Transport

	mu            sync.Mutex
	lastHeartbeat time.Time
	closed        bool
}

// New wraps transport for user. An empty deviceID gets a generated one.
func New(transport Transport, userID, deviceID string) *Conn {
	now := time.Now()
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return &Conn{
		ID:            uuid.NewString(),
		DeviceID:      deviceID,
		UserID:        userID,
		CreatedAt:     now,
		transport:     transport,
		lastHeartbeat: now,
	}
}

// Send writes one frame. Writes are serialized; gorilla allows a single
// concurrent writer.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.transport.WriteMessage(data)
}

// Read blocks for the next inbound frame. Only the owning connection
// goroutine calls Read.
func (c *Conn) Read() ([]byte, error) {
	return c.transport.ReadMessage()
}

// Touch records a heartbeat.
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastHeartbeat = time.Now()
	c.mu.Unlock()
}

// LastHeartbeat returns the time of the most recent heartbeat touch.
func (c *Conn) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// IsOpen reports whether the connection has not been closed yet.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close tears the transport down with a close code. Safe to call more
// than once.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.transport.Close(code, reason)
}

// staleness orders connections for eviction: smaller (lastHeartbeat,
// createdAt) means staler.
func (c *Conn) stalerThan(other *Conn) bool {
	a, b := c.LastHeartbeat(), other.LastHeartbeat()
	if !a.Equal(b) {
		return a.Before(b)
	}
	return c.CreatedAt.Before(other.CreatedAt)
}
