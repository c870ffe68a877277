package types

import "encoding/json"

// ConnectionID identifies one signaling socket. It is issued by the
// messaging channel and never reused, so a participant that reconnects
// shows up with a different ConnectionID.
type ConnectionID string

// Event is the envelope exchanged on the signaling socket in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaKindAudio || k == MediaKindVideo
}
