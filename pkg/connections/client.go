package connections

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ws-class-server/pkg/types"
)

// Client is one signaling socket.
type Client struct {
	id     types.ConnectionID
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.SugaredLogger

	ctx      context.Context
	cancel   context.CancelFunc
	kickOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, id types.ConnectionID) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.conf.SendBuffer),
		logger: h.logger.With("connectionId", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

// kick closes the socket, which ends the read loop and with it the client.
func (c *Client) kick() {
	c.kickOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.kick()

	conf := c.hub.conf
	c.conn.SetReadLimit(conf.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(conf.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(conf.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("read failed", "error", err)
			}
			return
		}

		var msg types.Event
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			c.logger.Warnw("dropping malformed message", "error", err)
			continue
		}
		c.hub.handler.Handle(c.ctx, c.id, msg)
	}
}

func (c *Client) writePump() {
	conf := c.hub.conf
	ticker := time.NewTicker(conf.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debugw("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
