package connections

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/misc"
	"ws-class-server/pkg/types"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrHubClosed         = errors.New("hub closed")
)

// Handler consumes what arrives on the sockets. Handle is called from the
// connection's read loop, so events of one connection are handled in order.
type Handler interface {
	Handle(ctx context.Context, conn types.ConnectionID, msg types.Event)
	HandleDisconnect(conn types.ConnectionID)
}

// Hub owns every signaling socket and implements the outbound side of the
// messaging channel.
type Hub struct {
	conf     config.SignalingConfig
	upgrader *websocket.Upgrader
	handler  Handler
	logger   *zap.SugaredLogger
	closed   atomic.Bool

	lock    sync.RWMutex
	clients map[types.ConnectionID]*Client
}

func NewHub(conf config.SignalingConfig, logger *zap.SugaredLogger) *Hub {
	defaults := config.DefaultConfig.Signaling
	if conf.WriteWait <= 0 {
		conf.WriteWait = defaults.WriteWait
	}
	if conf.PongWait <= 0 {
		conf.PongWait = defaults.PongWait
	}
	if conf.MaxMessageSize <= 0 {
		conf.MaxMessageSize = defaults.MaxMessageSize
	}
	if conf.SendBuffer <= 0 {
		conf.SendBuffer = defaults.SendBuffer
	}
	return &Hub{
		conf:     conf,
		upgrader: misc.NewUpgrader(conf.AllowedOrigins),
		logger:   logger,
		clients:  make(map[types.ConnectionID]*Client),
	}
}

// SetHandler must be called before the hub serves connections.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Send queues an event for conn without waiting for the socket. A client
// whose queue is full is disconnected.
func (h *Hub) Send(conn types.ConnectionID, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	message, err := json.Marshal(types.Event{Event: event, Data: payload})
	if err != nil {
		return err
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	c, ok := h.clients[conn]
	if !ok {
		return ErrUnknownConnection
	}
	select {
	case c.send <- message:
		return nil
	default:
		h.logger.Warnw("send buffer full, dropping connection", "connectionId", conn, "event", event)
		c.kick()
		return ErrSendBufferFull
	}
}

func (h *Hub) Count() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed.Load() {
		return ErrHubClosed
	}
	h.clients[c.id] = c
	return nil
}

// unregister removes c and closes its send queue. It reports whether c
// was still registered.
func (h *Hub) unregister(c *Client) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	return true
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.closed.Store(true)
	h.lock.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.lock.RUnlock()

	for _, c := range clients {
		c.kick()
	}
}
