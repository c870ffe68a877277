package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ws-class-server/pkg/types"
)

type fakeEngine struct {
	lock sync.Mutex
	next int

	transports map[string]bool // id -> connected
	producers  map[string]string
	consumers  map[string]bool // id -> resumed
	closed     []string
	bitrates   map[string]uint64

	failConsume  bool
	blockProduce bool

	produceGate    chan struct{}
	produceEntered chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		transports: make(map[string]bool),
		producers:  make(map[string]string),
		consumers:  make(map[string]bool),
		bitrates:   make(map[string]uint64),
	}
}

func (e *fakeEngine) id(prefix string) string {
	e.next++
	return fmt.Sprintf("%s-%d", prefix, e.next)
}

func (e *fakeEngine) RtpCapabilities() types.RtpCapabilities {
	return types.RtpCapabilities{Codecs: []types.RtpCodecCapability{
		{Kind: types.MediaKindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{Kind: types.MediaKindVideo, MimeType: "video/VP8", ClockRate: 90000},
	}}
}

func (e *fakeEngine) CreateTransport(_ context.Context) (types.TransportInfo, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	id := e.id("transport")
	e.transports[id] = false
	return types.TransportInfo{ID: id}, nil
}

func (e *fakeEngine) ConnectTransport(_ context.Context, transportID string, _ types.ConnectParams) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, ok := e.transports[transportID]; !ok {
		return errors.New("unknown transport")
	}
	e.transports[transportID] = true
	return nil
}

func (e *fakeEngine) SetMaxIncomingBitrate(_ context.Context, transportID string, bitrate uint64) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.bitrates[transportID] = bitrate
	return nil
}

func (e *fakeEngine) Produce(ctx context.Context, transportID string, kind types.MediaKind, _ types.RtpParameters) (string, error) {
	if e.blockProduce {
		<-ctx.Done()
		return "", ctx.Err()
	}
	e.lock.Lock()
	_, ok := e.transports[transportID]
	e.lock.Unlock()
	if !ok {
		return "", errors.New("unknown transport")
	}
	if e.produceGate != nil {
		e.produceEntered <- struct{}{}
		select {
		case <-e.produceGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	id := e.id(string(kind) + "-producer")
	e.producers[id] = transportID
	return id, nil
}

// holdProduce makes the next Produce calls wait until the returned func is
// called. entered receives once per call that reached the engine.
func (e *fakeEngine) holdProduce() (entered <-chan struct{}, release func()) {
	e.produceGate = make(chan struct{})
	e.produceEntered = make(chan struct{}, 8)
	return e.produceEntered, func() { close(e.produceGate) }
}

func (e *fakeEngine) producersOn(transportID string) []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	var ids []string
	for id, t := range e.producers {
		if t == transportID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *fakeEngine) Consume(_ context.Context, transportID, producerID string, _ types.RtpCapabilities) (types.ConsumerInfo, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.failConsume {
		return types.ConsumerInfo{}, errors.New("producer closed")
	}
	if _, ok := e.producers[producerID]; !ok {
		return types.ConsumerInfo{}, errors.New("unknown producer")
	}
	if _, ok := e.transports[transportID]; !ok {
		return types.ConsumerInfo{}, errors.New("unknown transport")
	}
	id := e.id("consumer")
	e.consumers[id] = false
	kind := types.MediaKindVideo
	if len(producerID) > 5 && producerID[:5] == "audio" {
		kind = types.MediaKindAudio
	}
	return types.ConsumerInfo{ID: id, ProducerID: producerID, Kind: kind, Type: "simple"}, nil
}

func (e *fakeEngine) Resume(_ context.Context, consumerID string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, ok := e.consumers[consumerID]; !ok {
		return errors.New("unknown consumer")
	}
	e.consumers[consumerID] = true
	return nil
}

func (e *fakeEngine) Close(id string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	_, t := e.transports[id]
	_, p := e.producers[id]
	_, c := e.consumers[id]
	if !t && !p && !c {
		return errors.New("unknown id " + id)
	}
	delete(e.transports, id)
	delete(e.producers, id)
	delete(e.consumers, id)
	e.closed = append(e.closed, id)
	return nil
}

func (e *fakeEngine) closedIDs() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]string(nil), e.closed...)
}

func (e *fakeEngine) isOpen(id string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	_, t := e.transports[id]
	_, p := e.producers[id]
	_, c := e.consumers[id]
	return t || p || c
}

type fakeDirectory struct {
	lock    sync.Mutex
	classes map[string]*types.ClassDetails
	// when set MarkEnded leaves the record untouched
	forgetful bool
	fail      bool
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{classes: make(map[string]*types.ClassDetails)}
	for _, id := range ids {
		d.classes[id] = &types.ClassDetails{ID: id, Teacher: types.Person{ID: "teacher-of-" + id}}
	}
	return d
}

func (d *fakeDirectory) GetClass(_ context.Context, classID string) (*types.ClassDetails, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c, ok := d.classes[classID]
	if !ok {
		return nil, types.ErrClassNotFound
	}
	out := *c
	return &out, nil
}

func (d *fakeDirectory) MarkEnded(_ context.Context, classID string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.fail {
		return errors.New("connection refused")
	}
	c, ok := d.classes[classID]
	if !ok {
		return types.ErrClassNotFound
	}
	if !d.forgetful {
		now := time.Now()
		c.EndedAt = &now
	}
	return nil
}

func (d *fakeDirectory) LiveClasses(_ context.Context) ([]types.ClassDetails, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	var live []types.ClassDetails
	for _, c := range d.classes {
		if !c.Ended() {
			live = append(live, *c)
		}
	}
	return live, nil
}

type sentEvent struct {
	conn  types.ConnectionID
	event string
	data  json.RawMessage
}

type recordingSink struct {
	lock   sync.Mutex
	events []sentEvent
}

func (s *recordingSink) Send(conn types.ConnectionID, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, sentEvent{conn: conn, event: event, data: raw})
	return nil
}

func (s *recordingSink) count(conn types.ConnectionID, event string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	n := 0
	for _, e := range s.events {
		if e.conn == conn && e.event == event {
			n++
		}
	}
	return n
}

// last returns the payload of the most recent event sent to conn.
func (s *recordingSink) last(conn types.ConnectionID, event string) (json.RawMessage, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if e := s.events[i]; e.conn == conn && e.event == event {
			return e.data, true
		}
	}
	return nil, false
}

func (s *recordingSink) reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = nil
}
