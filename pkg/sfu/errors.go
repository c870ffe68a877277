package sfu

import "errors"

var (
	ErrNotFound             = errors.New("media object not found")
	ErrTransportClosed      = errors.New("transport closed")
	ErrAlreadyConnected     = errors.New("transport already connected")
	ErrMissingIceParameters = errors.New("ice parameters are required to connect")
	ErrUnsupportedCodec     = errors.New("codec is not supported by the router")
	ErrMissingSsrc          = errors.New("rtp parameters carry no ssrc")
	ErrCannotConsume        = errors.New("rtp capabilities cannot consume producer")
	ErrInvalidKind          = errors.New("invalid media kind")
)
