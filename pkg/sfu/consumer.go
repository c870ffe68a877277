package sfu

import (
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"ws-class-server/pkg/types"
)

// consumer sends one producer's media down another transport. It starts
// paused and only receives packets after resume.
type consumer struct {
	id        string
	mid       string
	producer  *producer
	transport *transport
	sender    *webrtc.RTPSender
	track     *webrtc.TrackLocalStaticRTP
	ssrc      uint32
	logger    *zap.SugaredLogger

	paused atomic.Bool
	closed atomic.Bool
}

func newConsumer(e *Engine, t *transport, p *producer) (*consumer, error) {
	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(p.codec.RTPCodecCapability, id, p.cname)
	if err != nil {
		return nil, err
	}
	sender, err := e.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, err
	}
	params := sender.GetParameters()
	if err := sender.Send(params); err != nil {
		_ = sender.Stop()
		return nil, err
	}

	c := &consumer{
		id:        id,
		mid:       t.nextMid(),
		producer:  p,
		transport: t,
		sender:    sender,
		track:     track,
		logger:    t.logger.With("consumer", id, "producer", p.id),
	}
	if len(params.Encodings) > 0 {
		c.ssrc = uint32(params.Encodings[0].SSRC)
	}
	c.paused.Store(true)
	return c, nil
}

func (c *consumer) info() types.ConsumerInfo {
	return types.ConsumerInfo{
		ID:         c.id,
		ProducerID: c.producer.id,
		Kind:       c.producer.kind,
		RtpParameters: types.RtpParameters{
			Mid:       c.mid,
			Codecs:    []types.RtpCodecParameters{encodeCodecParameters(c.producer.codec)},
			Encodings: []types.RtpEncodingParameters{{Ssrc: c.ssrc}},
			Rtcp: &types.RtcpParameters{
				Cname:       c.producer.cname,
				ReducedSize: true,
			},
		},
		Type:           "simple",
		ProducerPaused: false,
	}
}

func (c *consumer) resume() {
	if c.paused.CompareAndSwap(true, false) {
		c.producer.requestKeyFrame()
	}
}

// readRTCP drains feedback from the remote receiver, relaying key frame
// requests to the producer.
func (c *consumer) readRTCP() {
	for {
		packets, _, err := c.sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range packets {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				if !c.paused.Load() {
					c.producer.requestKeyFrame()
				}
			}
		}
	}
}

func (c *consumer) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.paused.Store(true)
	if err := c.sender.Stop(); err != nil {
		c.logger.Debugw("stopping sender", "error", err)
	}
}
