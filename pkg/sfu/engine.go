package sfu

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/logger"
	"ws-class-server/pkg/types"
)

// dynamic payload types are handed out from here in codec config order
const firstPayloadType = 100

const defaultRembInterval = time.Second

// Engine is a selective forwarding unit built on pion's ORTC objects. Every
// transport is one ICE gatherer, ICE transport and DTLS transport; producers
// are RTP receivers on it and consumers are RTP senders fed by a producer.
type Engine struct {
	api          *webrtc.API
	iceServers   []webrtc.ICEServer
	codecs       map[types.MediaKind][]webrtc.RTPCodecParameters
	capabilities types.RtpCapabilities
	rembInterval time.Duration
	logger       *zap.SugaredLogger

	lock       sync.RWMutex
	transports map[string]*transport
	producers  map[string]*producer
	consumers  map[string]*consumer
}

func NewEngine(conf config.RTCConfig, iceServers []webrtc.ICEServer, log *zap.SugaredLogger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}

	mediaEngine := &webrtc.MediaEngine{}
	codecs, capabilities, err := registerCodecs(mediaEngine, conf.Codecs)
	if err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}
	intervalPliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, err
	}
	interceptorRegistry.Add(intervalPliFactory)

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: logger.NewPionLoggerFactory(log.Named("pion")),
	}
	settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	if conf.PortRangeStart != 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(conf.PortRangeStart, conf.PortRangeEnd); err != nil {
			return nil, err
		}
	}
	if conf.AnnouncedIP != "" {
		settingEngine.SetNAT1To1IPs([]string{conf.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingEngine),
	)

	return &Engine{
		api:          api,
		iceServers:   iceServers,
		codecs:       codecs,
		capabilities: capabilities,
		rembInterval: defaultRembInterval,
		logger:       log,
		transports:   make(map[string]*transport),
		producers:    make(map[string]*producer),
		consumers:    make(map[string]*consumer),
	}, nil
}

// registerCodecs registers every configured codec under a fixed payload
// type. Incoming RTP is only accepted for registered payload types, so the
// advertised capabilities carry the same numbers as preferred payload types.
func registerCodecs(m *webrtc.MediaEngine, conf []config.CodecConfig) (map[types.MediaKind][]webrtc.RTPCodecParameters, types.RtpCapabilities, error) {
	codecs := make(map[types.MediaKind][]webrtc.RTPCodecParameters)
	var capabilities types.RtpCapabilities

	for i, c := range conf {
		kind := types.MediaKind(c.Kind)
		typ, err := decodeKind(kind)
		if err != nil {
			return nil, capabilities, fmt.Errorf("codec %s: %w", c.MimeType, err)
		}
		codec := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     c.MimeType,
				ClockRate:    c.ClockRate,
				Channels:     c.Channels,
				SDPFmtpLine:  encodeFmtp(c.Parameters),
				RTCPFeedback: feedbackFor(kind),
			},
			PayloadType: webrtc.PayloadType(firstPayloadType + i),
		}
		if err := m.RegisterCodec(codec, typ); err != nil {
			return nil, capabilities, fmt.Errorf("registering %s: %w", c.MimeType, err)
		}
		codecs[kind] = append(codecs[kind], codec)
		capabilities.Codecs = append(capabilities.Codecs, encodeCodecCapability(kind, codec))
	}
	return codecs, capabilities, nil
}

func feedbackFor(kind types.MediaKind) []webrtc.RTCPFeedback {
	if kind != types.MediaKindVideo {
		return nil
	}
	return []webrtc.RTCPFeedback{
		{Type: webrtc.TypeRTCPFBNACK},
		{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
		{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
		{Type: webrtc.TypeRTCPFBGoogREMB},
	}
}

func (e *Engine) RtpCapabilities() types.RtpCapabilities {
	return e.capabilities
}

func (e *Engine) CreateTransport(ctx context.Context) (types.TransportInfo, error) {
	t, err := e.newTransport(ctx, uuid.NewString())
	if err != nil {
		return types.TransportInfo{}, err
	}

	e.lock.Lock()
	e.transports[t.id] = t
	e.lock.Unlock()

	e.logger.Debugw("transport created", "transport", t.id, "candidates", len(t.info.IceCandidates))
	return t.info, nil
}

func (e *Engine) ConnectTransport(ctx context.Context, transportID string, params types.ConnectParams) error {
	t, err := e.transport(transportID)
	if err != nil {
		return err
	}
	return t.connect(ctx, params)
}

func (e *Engine) SetMaxIncomingBitrate(ctx context.Context, transportID string, bitrate uint64) error {
	t, err := e.transport(transportID)
	if err != nil {
		return err
	}
	t.maxIncomingBitrate.Store(bitrate)
	return nil
}

func (e *Engine) Produce(ctx context.Context, transportID string, kind types.MediaKind, params types.RtpParameters) (string, error) {
	t, err := e.transport(transportID)
	if err != nil {
		return "", err
	}
	codec, err := e.matchProducerCodec(kind, params)
	if err != nil {
		return "", err
	}
	if len(params.Encodings) == 0 || params.Encodings[0].Ssrc == 0 {
		return "", ErrMissingSsrc
	}
	if err := t.waitReady(ctx); err != nil {
		return "", err
	}

	p, err := newProducer(e, t, kind, codec, params)
	if err != nil {
		return "", err
	}

	e.lock.Lock()
	e.producers[p.id] = p
	e.lock.Unlock()
	t.addProducer(p)

	go p.forward()

	e.logger.Infow("producer created", "producer", p.id, "transport", t.id, "kind", kind, "ssrc", p.ssrc)
	return p.id, nil
}

// matchProducerCodec finds the registered codec the client produces with.
// The payload type has to be the one advertised in the capabilities.
func (e *Engine) matchProducerCodec(kind types.MediaKind, params types.RtpParameters) (webrtc.RTPCodecParameters, error) {
	if _, err := decodeKind(kind); err != nil {
		return webrtc.RTPCodecParameters{}, err
	}
	if len(params.Codecs) == 0 {
		return webrtc.RTPCodecParameters{}, ErrUnsupportedCodec
	}
	want := params.Codecs[0]
	for _, codec := range e.codecs[kind] {
		if strings.EqualFold(codec.MimeType, want.MimeType) && uint8(codec.PayloadType) == want.PayloadType {
			return codec, nil
		}
	}
	return webrtc.RTPCodecParameters{}, fmt.Errorf("%w: %s/%d", ErrUnsupportedCodec, want.MimeType, want.PayloadType)
}

func (e *Engine) Consume(ctx context.Context, transportID, producerID string, caps types.RtpCapabilities) (types.ConsumerInfo, error) {
	t, err := e.transport(transportID)
	if err != nil {
		return types.ConsumerInfo{}, err
	}
	e.lock.RLock()
	p, ok := e.producers[producerID]
	e.lock.RUnlock()
	if !ok {
		return types.ConsumerInfo{}, fmt.Errorf("%w: producer %s", ErrNotFound, producerID)
	}
	if !canConsume(p.codec, caps) {
		return types.ConsumerInfo{}, fmt.Errorf("%w: %s", ErrCannotConsume, p.codec.MimeType)
	}

	c, err := newConsumer(e, t, p)
	if err != nil {
		return types.ConsumerInfo{}, err
	}

	e.lock.Lock()
	e.consumers[c.id] = c
	e.lock.Unlock()
	t.addConsumer(c)
	p.addConsumer(c)

	go c.readRTCP()

	return c.info(), nil
}

func canConsume(codec webrtc.RTPCodecParameters, caps types.RtpCapabilities) bool {
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, codec.MimeType) && c.ClockRate == codec.ClockRate {
			return true
		}
	}
	return false
}

func (e *Engine) Resume(ctx context.Context, consumerID string) error {
	e.lock.RLock()
	c, ok := e.consumers[consumerID]
	e.lock.RUnlock()
	if !ok {
		return fmt.Errorf("%w: consumer %s", ErrNotFound, consumerID)
	}
	c.resume()
	return nil
}

// Close closes the transport, producer or consumer with id. Closing a
// transport closes everything on it and closing a producer closes its
// consumers.
func (e *Engine) Close(id string) error {
	e.lock.RLock()
	t, isTransport := e.transports[id]
	p, isProducer := e.producers[id]
	c, isConsumer := e.consumers[id]
	e.lock.RUnlock()

	switch {
	case isTransport:
		return e.closeTransport(t)
	case isProducer:
		e.closeProducer(p)
		return nil
	case isConsumer:
		e.closeConsumer(c)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
}

// Shutdown closes every transport.
func (e *Engine) Shutdown() {
	e.lock.RLock()
	transports := make([]*transport, 0, len(e.transports))
	for _, t := range e.transports {
		transports = append(transports, t)
	}
	e.lock.RUnlock()

	for _, t := range transports {
		if err := e.closeTransport(t); err != nil {
			e.logger.Warnw("closing transport", "transport", t.id, "error", err)
		}
	}
}

func (e *Engine) closeTransport(t *transport) error {
	producers, consumers := t.detach()
	for _, c := range consumers {
		e.closeConsumer(c)
	}
	for _, p := range producers {
		e.closeProducer(p)
	}

	e.lock.Lock()
	delete(e.transports, t.id)
	e.lock.Unlock()

	return t.close()
}

func (e *Engine) closeProducer(p *producer) {
	e.lock.Lock()
	delete(e.producers, p.id)
	e.lock.Unlock()

	for _, c := range p.close() {
		e.closeConsumer(c)
	}
	p.transport.removeProducer(p.id)
	e.logger.Debugw("producer closed", "producer", p.id)
}

func (e *Engine) closeConsumer(c *consumer) {
	e.lock.Lock()
	delete(e.consumers, c.id)
	e.lock.Unlock()

	c.producer.removeConsumer(c.id)
	c.transport.removeConsumer(c.id)
	c.close()
}

func (e *Engine) transport(id string) (*transport, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	t, ok := e.transports[id]
	if !ok {
		return nil, fmt.Errorf("%w: transport %s", ErrNotFound, id)
	}
	return t, nil
}

// Stats reports how many media objects are alive.
func (e *Engine) Stats() (transports, producers, consumers int) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.transports), len(e.producers), len(e.consumers)
}
