package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ErrSendBufferFull means the client's outbound buffer is saturated. The
// caller treats the client as unreachable for that frame.
var ErrSendBufferFull = errors.New("client send buffer full")

// ErrClientClosed means the connection was torn down (or superseded) after the
// caller obtained its handle. The caller treats the client as unreachable.
var ErrClientClosed = errors.New("client connection closed")

// Client is one live authenticated connection. The user id is fixed at
// handshake and never changes for the connection's life.
type Client struct {
	engine *Engine
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu     sync.Mutex
	closed bool
}

func newClient(engine *Engine, conn *websocket.Conn, userID string) *Client {
	return &Client{
		engine: engine,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
}

func (c *Client) UserID() string {
	return c.userID
}

// Send queues a raw frame for the write pump. It never blocks; a full buffer
// returns ErrSendBufferFull and the frame is dropped here. The mutex orders
// Send against close: a router holding a stale handle gets ErrClientClosed
// instead of sending on a closed channel.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendFrame encodes and queues an outbound frame.
func (c *Client) SendFrame(frameType string, payload any) error {
	data, err := EncodeFrame(frameType, payload)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// close shuts the send channel, which terminates the write pump and closes
// the underlying connection. Safe to call from both the supersede path and
// the client's own teardown; later Sends observe the closed flag.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.engine.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.engine.messageMaxSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.engine.refreshPresence(c)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.engine.handleFrame(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
