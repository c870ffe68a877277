package room

import "ws-class-server/pkg/types"

type handleState uint8

const (
	handleEmpty handleState = iota
	handleActive
	handleClosed
)

// Handle is a revocable reference to an object owned by the media engine
// (transport, producer or consumer). The zero value is Empty.
type Handle struct {
	state handleState
	id    string
}

func ActiveHandle(id string) Handle {
	return Handle{state: handleActive, id: id}
}

// ID returns the engine id while the handle is Active.
func (h Handle) ID() (string, bool) {
	if h.state != handleActive {
		return "", false
	}
	return h.id, true
}

func (h Handle) IsActive() bool { return h.state == handleActive }

func (h Handle) IsClosed() bool { return h.state == handleClosed }

// Holds reports whether h is Active and points at id.
func (h Handle) Holds(id string) bool {
	return h.state == handleActive && h.id == id
}

func (h *Handle) Set(id string) {
	h.state = handleActive
	h.id = id
}

// Take revokes the handle and returns the id it held, if it was Active.
// Taking an Empty or Closed handle is a no-op.
func (h *Handle) Take() (string, bool) {
	if h.state != handleActive {
		return "", false
	}
	id := h.id
	h.state = handleClosed
	h.id = ""
	return id, true
}

func (h Handle) String() string {
	switch h.state {
	case handleActive:
		return "active(" + h.id + ")"
	case handleClosed:
		return "closed"
	default:
		return "empty"
	}
}

// MediaPair holds one handle per media kind.
type MediaPair struct {
	Audio Handle
	Video Handle
}

func (p *MediaPair) Get(kind types.MediaKind) *Handle {
	if kind == types.MediaKindAudio {
		return &p.Audio
	}
	return &p.Video
}

// TakeAll revokes both handles, returning the ids that were Active.
func (p *MediaPair) TakeAll() []string {
	var ids []string
	if id, ok := p.Video.Take(); ok {
		ids = append(ids, id)
	}
	if id, ok := p.Audio.Take(); ok {
		ids = append(ids, id)
	}
	return ids
}

func (p MediaPair) AnyActive() bool {
	return p.Audio.IsActive() || p.Video.IsActive()
}

// Snapshot returns the ids of the Active handles keyed by kind.
func (p MediaPair) Snapshot() map[types.MediaKind]string {
	ids := make(map[types.MediaKind]string, 2)
	if id, ok := p.Video.ID(); ok {
		ids[types.MediaKindVideo] = id
	}
	if id, ok := p.Audio.ID(); ok {
		ids[types.MediaKindAudio] = id
	}
	return ids
}

// Matches reports whether p holds exactly the ids of snapshot.
func (p MediaPair) Matches(snapshot map[types.MediaKind]string) bool {
	current := p.Snapshot()
	if len(current) != len(snapshot) {
		return false
	}
	for kind, id := range snapshot {
		if current[kind] != id {
			return false
		}
	}
	return true
}
