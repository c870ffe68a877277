package signaling

import (
	"context"

	"ws-class-server/pkg/types"
)

// MediaEngine is the SFU boundary. Every id it hands out (transport,
// producer, consumer) can be passed to Close. Consumers are created paused.
type MediaEngine interface {
	RtpCapabilities() types.RtpCapabilities
	CreateTransport(ctx context.Context) (types.TransportInfo, error)
	ConnectTransport(ctx context.Context, transportID string, params types.ConnectParams) error
	SetMaxIncomingBitrate(ctx context.Context, transportID string, bitrate uint64) error
	Produce(ctx context.Context, transportID string, kind types.MediaKind, rtpParameters types.RtpParameters) (string, error)
	Consume(ctx context.Context, transportID, producerID string, rtpCapabilities types.RtpCapabilities) (types.ConsumerInfo, error)
	Resume(ctx context.Context, consumerID string) error
	Close(id string) error
}

// ClassDirectory resolves class records. GetClass returns an error wrapping
// types.ErrClassNotFound for unknown ids.
type ClassDirectory interface {
	GetClass(ctx context.Context, classID string) (*types.ClassDetails, error)
	MarkEnded(ctx context.Context, classID string) error
	LiveClasses(ctx context.Context) ([]types.ClassDetails, error)
}

// MessageSink delivers an outbound event to one connection. Send must not
// block on a slow peer.
type MessageSink interface {
	Send(conn types.ConnectionID, event string, data interface{}) error
}
