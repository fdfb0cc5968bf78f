package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/auth"
	"github.com/QuizzityMC/CanaryTalk-Endtoend/internal/protocol"
)

// sendBuffer is the per-connection outbound queue depth.
const sendBuffer = 256

// Client is one websocket connection. identity is set once by the
// authenticate handler and only read from this connection's goroutines
// afterwards; cross-connection traffic goes through trySend only.
type Client struct {
	srv  *Server
	conn *websocket.Conn
	send chan protocol.ServerFrame
	done chan struct{}
	once sync.Once

	identity auth.Identity
	authed   bool
}

func newClient(srv *Server, conn *websocket.Conn) *Client {
	return &Client{
		srv:  srv,
		conn: conn,
		send: make(chan protocol.ServerFrame, sendBuffer),
		done: make(chan struct{}),
	}
}

// trySend queues a frame without blocking. Reports false when the client
// is closed or its buffer is full; callers treat that as a failed
// best-effort forward.
func (c *Client) trySend(frame protocol.ServerFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close stops the write pump and closes the transport. Safe to call from
// any goroutine, more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) readPump() {
	defer func() {
		if c.authed {
			if c.srv.registry.Unregister(c.identity.UserID, c) {
				c.srv.log.WithFields(logrus.Fields{
					"userId":   c.identity.UserID,
					"username": c.identity.Username,
				}).Info("user disconnected")
			}
		}
		c.close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.srv.log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.srv.log.WithError(err).Warn("unparseable frame")
			continue
		}

		c.srv.handleFrame(c, frame)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case frame := <-c.send:
			payload, err := json.Marshal(frame)
			if err != nil {
				c.srv.log.WithError(err).Error("marshal outbound frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
