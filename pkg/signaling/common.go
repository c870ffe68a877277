package signaling

import (
	"context"

	"ws-class-server/pkg/types"
)

func (d *Dispatcher) getCapabilities(_ context.Context, _ types.ConnectionID, _ *request) (*reply, error) {
	return &reply{EventReceiveCapabilities, d.engine.RtpCapabilities()}, nil
}

func (d *Dispatcher) getActiveClasses(ctx context.Context, _ types.ConnectionID, _ *request) (*reply, error) {
	classes, err := d.directory.LiveClasses(ctx)
	if err != nil {
		return nil, directoryError("", err)
	}
	if classes == nil {
		classes = []types.ClassDetails{}
	}
	return &reply{EventLiveClasses, classes}, nil
}
