package sfu

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"ws-class-server/pkg/logger"
)

func runForward(t *testing.T, p *producer, read func() (*rtp.Packet, error)) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.forwardFrom(read)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forwarding never stopped")
	}
}

func TestForwardGivesUpOnPersistentReadErrors(t *testing.T) {
	p := &producer{id: "p1", logger: logger.Nop(), consumers: map[string]*consumer{}}
	reads := 0
	started := time.Now()
	runForward(t, p, func() (*rtp.Packet, error) {
		reads++
		return nil, errors.New("srtp: bad auth tag")
	})
	require.Equal(t, maxReadErrors, reads)
	require.GreaterOrEqual(t, time.Since(started), time.Duration(maxReadErrors-1)*readErrorBackoff)
}

func TestForwardResetsErrorCountAfterGoodRead(t *testing.T) {
	p := &producer{id: "p1", logger: logger.Nop(), consumers: map[string]*consumer{}}
	reads := 0
	runForward(t, p, func() (*rtp.Packet, error) {
		reads++
		switch {
		case reads == maxReadErrors:
			return &rtp.Packet{}, nil
		case reads == maxReadErrors+5:
			return nil, io.EOF
		}
		return nil, errors.New("transient")
	})
	require.Equal(t, maxReadErrors+5, reads)
}

func TestForwardStopsWhenClosed(t *testing.T) {
	p := &producer{id: "p1", logger: logger.Nop(), consumers: map[string]*consumer{}}
	p.closed.Store(true)
	reads := 0
	runForward(t, p, func() (*rtp.Packet, error) {
		reads++
		return nil, errors.New("read after close")
	})
	require.Equal(t, 1, reads)
}
