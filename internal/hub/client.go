package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

var (
	ErrSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

// Client is one websocket connection. Outbound frames go through a
// bounded buffer drained by WritePump; a client whose buffer fills is
// closed as a slow consumer.
type Client struct {
	ID   string
	Conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	config    config.WebSocketConfig
}

func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBufferSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		ID:     id,
		Conn:   conn,
		send:   make(chan []byte, size),
		done:   make(chan struct{}),
		config: cfg,
	}
}

// Send queues a frame without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		l := log.L()
		l.Warn().Str(log.FieldConnectionID, c.ID).Msg("send buffer full, closing slow client")
		c.Close()
		return ErrSendBufferFull
	}
}

// Close signals WritePump to send a close frame and stop. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump feeds every inbound message to handler on the calling goroutine
// and returns when the connection fails or is closed.
func (c *Client) ReadPump(handler func([]byte)) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldConnectionID, c.ID).Msg("websocket read error")
			}
			return
		}

		handler(message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.Close()
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
