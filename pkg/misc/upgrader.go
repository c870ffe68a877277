package misc

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

const bufferSize = 4096

// NewUpgrader builds the websocket upgrader for the signaling endpoint.
// With no allowed origins every origin is accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return true
		}
	}
	hosts := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		hosts[normalizeOrigin(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := hosts[normalizeOrigin(origin)]
		return ok
	}
}

// normalizeOrigin reduces an origin or bare host to lower-case scheme://host.
func normalizeOrigin(origin string) string {
	origin = strings.ToLower(strings.TrimSuffix(origin, "/"))
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Scheme + "://" + u.Host
}
