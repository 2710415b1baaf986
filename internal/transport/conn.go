package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CloseInternalError is the close code sent when a connection is torn down
// because of a transport failure.
const CloseInternalError = websocket.CloseInternalServerErr

var ErrConnClosed = errors.New("connection closed")

// Conn is one client connection as seen by the protocol layer. Comparable
// by identity, so it can be used as a map key.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(payload []byte) error
	Close(code int, reason string) error
}

// Handler receives connection lifecycle callbacks. OnMessage is called
// sequentially for a single connection; different connections run
// concurrently.
type Handler interface {
	OnConnect(conn Conn)
	OnMessage(conn Conn, message []byte)
	OnDisconnect(conn Conn)
	OnError(conn Conn, err error)
}

type wsConn struct {
	id           uuid.UUID
	ws           *websocket.Conn
	remote       string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           uuid.New(),
		ws:           ws,
		remote:       ws.RemoteAddr().String(),
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string { return c.id.String() }

func (c *wsConn) RemoteAddr() string { return c.remote }

// Send writes one text frame. gorilla allows a single concurrent writer, so
// pushes from the notification workers and responses from the read loop
// are serialized here.
func (c *wsConn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) String() string {
	return c.ID() + "@" + c.remote
}
