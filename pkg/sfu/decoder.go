package sfu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"

	"ws-class-server/pkg/types"
)

// Conversions from the wire types sent by clients to pion's ORTC objects.

func decodeIceParameters(p types.IceParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.IceLite,
	}
}

func decodeIceCandidates(candidates []types.IceCandidate) ([]webrtc.ICECandidate, error) {
	list := make([]webrtc.ICECandidate, 0, len(candidates))
	for _, c := range candidates {
		protocol, err := webrtc.NewICEProtocol(c.Protocol)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.Foundation, err)
		}
		typ, err := webrtc.NewICECandidateType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.Foundation, err)
		}
		list = append(list, webrtc.ICECandidate{
			Foundation:     c.Foundation,
			Priority:       c.Priority,
			Address:        c.IP,
			Protocol:       protocol,
			Port:           c.Port,
			Typ:            typ,
			Component:      1,
			RelatedAddress: c.RelatedAddress,
			RelatedPort:    c.RelatedPort,
			TCPType:        c.TCPType,
		})
	}
	return list, nil
}

func decodeDtlsRole(role string) webrtc.DTLSRole {
	switch role {
	case "client":
		return webrtc.DTLSRoleClient
	case "server":
		return webrtc.DTLSRoleServer
	default:
		return webrtc.DTLSRoleAuto
	}
}

func decodeDtlsParameters(p types.DtlsParameters) webrtc.DTLSParameters {
	fingerprints := make([]webrtc.DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fingerprints = append(fingerprints, webrtc.DTLSFingerprint{
			Algorithm: f.Algorithm,
			Value:     f.Value,
		})
	}
	return webrtc.DTLSParameters{
		Role:         decodeDtlsRole(p.Role),
		Fingerprints: fingerprints,
	}
}

func decodeFeedback(feedback []types.RtcpFeedback) []webrtc.RTCPFeedback {
	list := make([]webrtc.RTCPFeedback, 0, len(feedback))
	for _, fb := range feedback {
		list = append(list, webrtc.RTCPFeedback{Type: fb.Type, Parameter: fb.Parameter})
	}
	return list
}

// decodeFmtp parses an fmtp line into codec parameters. Integer values are
// kept as numbers the way clients send them.
func decodeFmtp(line string) map[string]interface{} {
	if line == "" {
		return nil
	}
	params := make(map[string]interface{})
	for _, part := range strings.Split(line, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key == "" {
			continue
		}
		if n, err := strconv.Atoi(value); err == nil {
			params[key] = n
		} else {
			params[key] = value
		}
	}
	return params
}

func decodeKind(kind types.MediaKind) (webrtc.RTPCodecType, error) {
	switch kind {
	case types.MediaKindAudio:
		return webrtc.RTPCodecTypeAudio, nil
	case types.MediaKindVideo:
		return webrtc.RTPCodecTypeVideo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}
