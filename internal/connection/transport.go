// Package connection adapts raw transports into uniform connections and
// keeps the multi-device directory of who is connected.
package connection

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes used on the wire, mirroring the websocket registry.
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	CloseProtocolError   = websocket.CloseProtocolError
	ClosePolicyViolation = websocket.ClosePolicyViolation
)

// Transport is the minimal contract a bidirectional byte transport must
// satisfy. ReadMessage blocks until the next inbound frame.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// wsTransport adapts a gorilla websocket connection. Writes are
// serialized by the owning Conn; deadlines bound each operation.
type wsTransport struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// WSOptions tunes the websocket adapter.
type WSOptions struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// NewWSTransport wraps an upgraded websocket connection.
func NewWSTransport(conn *websocket.Conn, opts WSOptions) Transport {
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	t := &wsTransport{conn: conn, readTimeout: opts.ReadTimeout, writeTimeout: opts.WriteTimeout}
	if opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		})
	}
	return t
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Any inbound frame proves the peer is alive.
		if t.readTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
