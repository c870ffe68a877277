package signaling

import (
	"context"
	"time"

	"ws-class-server/pkg/room"
	"ws-class-server/pkg/types"
)

// media runs one media engine call under the configured deadline.
func (d *Dispatcher) media(ctx context.Context, op string, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.mediaTimeout)
	defer cancel()

	start := time.Now()
	err := call(ctx)
	d.metrics.ObserveMediaCall(op, start, err)
	if err != nil {
		return mediaError(ctx, op, err)
	}
	return nil
}

func (d *Dispatcher) createTransport(ctx context.Context) (types.TransportInfo, error) {
	var info types.TransportInfo
	err := d.media(ctx, "create-transport", func(ctx context.Context) error {
		var err error
		info, err = d.engine.CreateTransport(ctx)
		return err
	})
	if err != nil {
		return info, err
	}
	info.IceServers = d.iceServers
	return info, nil
}

// createProducerTransport also applies the incoming bitrate cap. A failure to
// apply the cap is logged and the transport kept.
func (d *Dispatcher) createProducerTransport(ctx context.Context) (types.TransportInfo, error) {
	info, err := d.createTransport(ctx)
	if err != nil || d.maxIncomingBitrate == 0 {
		return info, err
	}
	err = d.media(ctx, "set-max-incoming-bitrate", func(ctx context.Context) error {
		return d.engine.SetMaxIncomingBitrate(ctx, info.ID, d.maxIncomingBitrate)
	})
	if err != nil {
		d.logger.Warnw("could not cap incoming bitrate", "transportId", info.ID, "error", err)
	}
	return info, nil
}

func handleID(h *room.Handle, what string) (string, error) {
	id, ok := h.ID()
	if !ok {
		return "", invalidState("%s has not been created", what)
	}
	return id, nil
}

func (d *Dispatcher) connectTransport(ctx context.Context, transportID string, params types.ConnectParams) error {
	return d.media(ctx, "connect-transport", func(ctx context.Context) error {
		return d.engine.ConnectTransport(ctx, transportID, params)
	})
}

func (d *Dispatcher) produce(ctx context.Context, transportID string, kind types.MediaKind, params types.RtpParameters) (string, error) {
	var producerID string
	err := d.media(ctx, "produce", func(ctx context.Context) error {
		var err error
		producerID, err = d.engine.Produce(ctx, transportID, kind, params)
		return err
	})
	return producerID, err
}

// consume creates a paused consumer on transportID for every producer in
// sources. Nothing is kept when one of the legs fails.
func (d *Dispatcher) consume(ctx context.Context, transportID string, sources map[types.MediaKind]string, caps types.RtpCapabilities) (map[types.MediaKind]types.ConsumerInfo, error) {
	if len(sources) == 0 {
		return nil, notFound("source is not producing")
	}
	legs := make(map[types.MediaKind]types.ConsumerInfo, 2)
	for _, kind := range []types.MediaKind{types.MediaKindVideo, types.MediaKindAudio} {
		producerID, ok := sources[kind]
		if !ok {
			continue
		}
		var info types.ConsumerInfo
		err := d.media(ctx, "consume", func(ctx context.Context) error {
			var err error
			info, err = d.engine.Consume(ctx, transportID, producerID, caps)
			return err
		})
		if err != nil {
			d.discardConsumers(legs)
			return nil, err
		}
		legs[kind] = info
	}
	return legs, nil
}

func (d *Dispatcher) discardConsumers(legs map[types.MediaKind]types.ConsumerInfo) {
	for _, created := range legs {
		d.closeID(created.ID, "consumer")
	}
}

func (d *Dispatcher) storeConsumers(dst *room.MediaPair, legs map[types.MediaKind]types.ConsumerInfo) {
	for kind, info := range legs {
		d.replace(dst.Get(kind), info.ID, "consumer")
	}
}

// resumable returns the consumer ids of pair, failing when there are none.
func resumable(pair *room.MediaPair) ([]string, error) {
	if pair == nil || !pair.AnyActive() {
		return nil, notFound("no consumer to resume")
	}
	var ids []string
	for _, kind := range []types.MediaKind{types.MediaKindVideo, types.MediaKindAudio} {
		if id, ok := pair.Get(kind).ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *Dispatcher) resume(ctx context.Context, consumerIDs []string) error {
	for _, id := range consumerIDs {
		err := d.media(ctx, "resume", func(ctx context.Context) error {
			return d.engine.Resume(ctx, id)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// replace closes whatever h held before pointing it at id.
func (d *Dispatcher) replace(h *room.Handle, id, what string) {
	d.closeHandle(h, what)
	h.Set(id)
}

// closeHandle revokes h and closes the object it referenced. Closing an
// empty or already closed handle does nothing, and engine failures are
// only logged.
func (d *Dispatcher) closeHandle(h *room.Handle, what string) {
	if id, ok := h.Take(); ok {
		d.closeID(id, what)
	}
}

func (d *Dispatcher) closePair(p *room.MediaPair, what string) {
	for _, id := range p.TakeAll() {
		d.closeID(id, what)
	}
}

func (d *Dispatcher) closeID(id, what string) {
	start := time.Now()
	err := d.engine.Close(id)
	d.metrics.ObserveMediaCall("close", start, err)
	if err != nil {
		d.logger.Warnw("could not close media object", "kind", what, "id", id, "error", err)
	}
}
