package wsserver

import (
	"sync"

	"github.com/gorilla/websocket"
)

// conn adapts one upgraded websocket into the connection handle the event
// core fans out to. gorilla permits a single concurrent writer per socket,
// so Send serializes frames behind a mutex.
type conn struct {
	id     string
	remote string

	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) ID() string { return c.id }

// RemoteAddr reports the peer address for interaction-log entries.
func (c *conn) RemoteAddr() string { return c.remote }

func (c *conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *conn) Close() error {
	return c.ws.Close()
}
