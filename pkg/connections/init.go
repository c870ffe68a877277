package connections

import (
	"net/http"

	"github.com/google/uuid"

	"ws-class-server/pkg/types"
)

// ServeHTTP upgrades the request to a signaling socket and serves it until
// either side closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an http error
		h.logger.Debugw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(h, conn, types.ConnectionID(uuid.NewString()))
	if err := h.register(c); err != nil {
		_ = conn.Close()
		return
	}
	h.logger.Infow("connection opened", "connectionId", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()

	if h.unregister(c) {
		h.handler.HandleDisconnect(c.id)
	}
	h.logger.Infow("connection closed", "connectionId", c.id)
}
