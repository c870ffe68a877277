package sfu

import (
	"errors"
	"io"
	"time"

	"github.com/pion/rtp"
)

const (
	readErrorBackoff = 20 * time.Millisecond
	// a receiver failing this many reads in a row is treated as gone
	maxReadErrors = 25
)

// forward reads the producer's track and copies every packet to each
// resumed consumer until the receiver stops.
func (p *producer) forward() {
	track := p.receiver.Track()
	p.forwardFrom(func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	})
}

func (p *producer) forwardFrom(read func() (*rtp.Packet, error)) {
	failures := 0
	for {
		pkt, err := read()
		if err != nil {
			if p.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			failures++
			if failures >= maxReadErrors {
				p.logger.Warnw("giving up on producer track", "producerId", p.id, "error", err)
				return
			}
			p.logger.Debugw("dropping rtp packet", "error", err)
			time.Sleep(readErrorBackoff)
			continue
		}
		failures = 0

		p.lock.RLock()
		for _, c := range p.consumers {
			if c.paused.Load() {
				continue
			}
			if err := c.track.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				c.logger.Debugw("writing rtp", "error", err)
			}
		}
		p.lock.RUnlock()
	}
}
