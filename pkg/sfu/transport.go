package sfu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"ws-class-server/pkg/types"
)

type transport struct {
	id       string
	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	info     types.TransportInfo
	logger   *zap.SugaredLogger

	maxIncomingBitrate atomic.Uint64
	rembInterval       time.Duration

	connecting atomic.Bool
	// closed once the dtls handshake completed
	ready      chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once
	connectErr atomic.Error

	lock      sync.Mutex
	producers map[string]*producer
	consumers map[string]*consumer
	mids      int
}

func (e *Engine) newTransport(ctx context.Context, id string) (*transport, error) {
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.iceServers})
	if err != nil {
		return nil, err
	}
	gathered := make(chan struct{})
	var gatheredOnce sync.Once
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			gatheredOnce.Do(func() { close(gathered) })
		}
	})

	iceTransport := e.api.NewICETransport(gatherer)
	dtlsTransport, err := e.api.NewDTLSTransport(iceTransport, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, err
	}

	t := &transport{
		id:           id,
		gatherer:     gatherer,
		ice:          iceTransport,
		dtls:         dtlsTransport,
		logger:       e.logger.With("transport", id),
		rembInterval: e.rembInterval,
		ready:        make(chan struct{}),
		closed:       make(chan struct{}),
		producers:    make(map[string]*producer),
		consumers:    make(map[string]*consumer),
	}

	if err := gatherer.Gather(); err != nil {
		_ = t.close()
		return nil, err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = t.close()
		return nil, ctx.Err()
	}

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		_ = t.close()
		return nil, err
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		_ = t.close()
		return nil, err
	}
	dtlsParams, err := dtlsTransport.GetLocalParameters()
	if err != nil {
		_ = t.close()
		return nil, err
	}

	t.info = types.TransportInfo{
		ID:             id,
		IceParameters:  encodeIceParameters(iceParams),
		IceCandidates:  encodeIceCandidates(candidates),
		DtlsParameters: encodeDtlsParameters(dtlsParams),
	}
	return t, nil
}

// connect applies the remote parameters and starts ICE and DTLS in the
// background. Producers wait for the handshake in waitReady.
func (t *transport) connect(ctx context.Context, params types.ConnectParams) error {
	if params.IceParameters == nil {
		return ErrMissingIceParameters
	}
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}
	if !t.connecting.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	candidates, err := decodeIceCandidates(params.IceCandidates)
	if err != nil {
		t.connecting.Store(false)
		return err
	}
	if len(candidates) > 0 {
		if err := t.ice.SetRemoteCandidates(candidates); err != nil {
			t.connecting.Store(false)
			return err
		}
	}

	iceParams := decodeIceParameters(*params.IceParameters)
	dtlsParams := decodeDtlsParameters(params.DtlsParameters)
	go t.start(iceParams, dtlsParams)
	return nil
}

func (t *transport) start(iceParams webrtc.ICEParameters, dtlsParams webrtc.DTLSParameters) {
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, iceParams, &role); err != nil {
		t.fail(fmt.Errorf("ice: %w", err))
		return
	}
	if err := t.dtls.Start(dtlsParams); err != nil {
		t.fail(fmt.Errorf("dtls: %w", err))
		return
	}
	t.logger.Debugw("transport connected")
	close(t.ready)
	t.sendRemb()
}

func (t *transport) fail(err error) {
	select {
	case <-t.closed:
		return
	default:
	}
	t.connectErr.Store(err)
	t.logger.Warnw("transport failed to connect", "error", err)
	_ = t.close()
}

func (t *transport) waitReady(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-t.closed:
		if err := t.connectErr.Load(); err != nil {
			return err
		}
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendRemb caps what the remote side sends on this transport for as long
// as a bitrate limit is set.
func (t *transport) sendRemb() {
	ticker := time.NewTicker(t.rembInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
		}
		bitrate := t.maxIncomingBitrate.Load()
		ssrcs := t.producerSSRCs()
		if bitrate == 0 || len(ssrcs) == 0 {
			continue
		}
		_, err := t.dtls.WriteRTCP([]rtcp.Packet{&rtcp.ReceiverEstimatedMaximumBitrate{
			Bitrate: float32(bitrate),
			SSRCs:   ssrcs,
		}})
		if err != nil {
			t.logger.Debugw("writing remb", "error", err)
		}
	}
}

// requestKeyFrame asks the remote sender of ssrc for a fresh key frame.
func (t *transport) requestKeyFrame(ssrc uint32) {
	select {
	case <-t.ready:
	default:
		return
	}
	if _, err := t.dtls.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
		t.logger.Debugw("writing pli", "ssrc", ssrc, "error", err)
	}
}

func (t *transport) producerSSRCs() []uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()
	ssrcs := make([]uint32, 0, len(t.producers))
	for _, p := range t.producers {
		ssrcs = append(ssrcs, p.ssrc)
	}
	return ssrcs
}

func (t *transport) addProducer(p *producer) {
	t.lock.Lock()
	t.producers[p.id] = p
	t.lock.Unlock()
}

func (t *transport) removeProducer(id string) {
	t.lock.Lock()
	delete(t.producers, id)
	t.lock.Unlock()
}

func (t *transport) addConsumer(c *consumer) {
	t.lock.Lock()
	t.consumers[c.id] = c
	t.lock.Unlock()
}

func (t *transport) removeConsumer(id string) {
	t.lock.Lock()
	delete(t.consumers, id)
	t.lock.Unlock()
}

func (t *transport) nextMid() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	mid := strconv.Itoa(t.mids)
	t.mids++
	return mid
}

// detach empties the transport, handing back what was on it.
func (t *transport) detach() ([]*producer, []*consumer) {
	t.lock.Lock()
	defer t.lock.Unlock()
	producers := make([]*producer, 0, len(t.producers))
	for _, p := range t.producers {
		producers = append(producers, p)
	}
	consumers := make([]*consumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		consumers = append(consumers, c)
	}
	t.producers = make(map[string]*producer)
	t.consumers = make(map[string]*consumer)
	return producers, consumers
}

func (t *transport) close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = errors.Join(t.dtls.Stop(), t.ice.Stop(), t.gatherer.Close())
	})
	return err
}
