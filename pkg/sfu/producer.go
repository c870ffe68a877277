package sfu

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"ws-class-server/pkg/types"
)

type producer struct {
	id        string
	kind      types.MediaKind
	transport *transport
	receiver  *webrtc.RTPReceiver
	codec     webrtc.RTPCodecParameters
	ssrc      uint32
	cname     string
	logger    *zap.SugaredLogger

	closed atomic.Bool

	lock      sync.RWMutex
	consumers map[string]*consumer
}

func newProducer(e *Engine, t *transport, kind types.MediaKind, codec webrtc.RTPCodecParameters, params types.RtpParameters) (*producer, error) {
	typ, err := decodeKind(kind)
	if err != nil {
		return nil, err
	}
	receiver, err := e.api.NewRTPReceiver(typ, t.dtls)
	if err != nil {
		return nil, err
	}

	encoding := params.Encodings[0]
	decoding := webrtc.RTPDecodingParameters{
		RTPCodingParameters: webrtc.RTPCodingParameters{
			SSRC:        webrtc.SSRC(encoding.Ssrc),
			PayloadType: codec.PayloadType,
		},
	}
	if encoding.Rtx != nil {
		decoding.RTX.SSRC = webrtc.SSRC(encoding.Rtx.Ssrc)
	}
	if err := receiver.Receive(webrtc.RTPReceiveParameters{Encodings: []webrtc.RTPDecodingParameters{decoding}}); err != nil {
		_ = receiver.Stop()
		return nil, err
	}

	id := uuid.NewString()
	p := &producer{
		id:        id,
		kind:      kind,
		transport: t,
		receiver:  receiver,
		codec:     codec,
		ssrc:      encoding.Ssrc,
		cname:     id,
		logger:    t.logger.With("producer", id),
		consumers: make(map[string]*consumer),
	}
	if params.Rtcp != nil && params.Rtcp.Cname != "" {
		p.cname = params.Rtcp.Cname
	}
	return p, nil
}

func (p *producer) addConsumer(c *consumer) {
	p.lock.Lock()
	p.consumers[c.id] = c
	p.lock.Unlock()
}

func (p *producer) removeConsumer(id string) {
	p.lock.Lock()
	delete(p.consumers, id)
	p.lock.Unlock()
}

func (p *producer) requestKeyFrame() {
	if p.kind != types.MediaKindVideo || p.closed.Load() {
		return
	}
	p.transport.requestKeyFrame(p.ssrc)
}

// close stops the receiver and returns the consumers that were fed by it.
func (p *producer) close() []*consumer {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.receiver.Stop(); err != nil {
		p.logger.Debugw("stopping receiver", "error", err)
	}

	p.lock.Lock()
	consumers := make([]*consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[string]*consumer)
	p.lock.Unlock()
	return consumers
}
