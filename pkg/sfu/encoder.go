package sfu

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"

	"ws-class-server/pkg/types"
)

// Conversions from pion's ORTC objects to the wire types sent to clients.

func encodeIceParameters(p webrtc.ICEParameters) types.IceParameters {
	return types.IceParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		IceLite:          p.ICELite,
	}
}

func encodeIceCandidates(candidates []webrtc.ICECandidate) []types.IceCandidate {
	list := make([]types.IceCandidate, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, types.IceCandidate{
			Foundation:     c.Foundation,
			Priority:       c.Priority,
			IP:             c.Address,
			Protocol:       c.Protocol.String(),
			Port:           c.Port,
			Type:           c.Typ.String(),
			TCPType:        c.TCPType,
			RelatedAddress: c.RelatedAddress,
			RelatedPort:    c.RelatedPort,
		})
	}
	return list
}

// the server never picks a dtls role up front, the client decides
func encodeDtlsParameters(p webrtc.DTLSParameters) types.DtlsParameters {
	fingerprints := make([]types.DtlsFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fingerprints = append(fingerprints, types.DtlsFingerprint{
			Algorithm: f.Algorithm,
			Value:     f.Value,
		})
	}
	return types.DtlsParameters{
		Role:         webrtc.DTLSRoleAuto.String(),
		Fingerprints: fingerprints,
	}
}

func encodeFeedback(feedback []webrtc.RTCPFeedback) []types.RtcpFeedback {
	if len(feedback) == 0 {
		return nil
	}
	list := make([]types.RtcpFeedback, 0, len(feedback))
	for _, fb := range feedback {
		list = append(list, types.RtcpFeedback{Type: fb.Type, Parameter: fb.Parameter})
	}
	return list
}

// encodeFmtp renders codec parameters as an fmtp line with sorted keys.
func encodeFmtp(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatParam(params[k]))
	}
	return strings.Join(parts, ";")
}

func formatParam(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case interface{ String() string }:
		return t.String()
	default:
		return ""
	}
}

func encodeCodecParameters(codec webrtc.RTPCodecParameters) types.RtpCodecParameters {
	return types.RtpCodecParameters{
		MimeType:     codec.MimeType,
		PayloadType:  uint8(codec.PayloadType),
		ClockRate:    codec.ClockRate,
		Channels:     codec.Channels,
		Parameters:   decodeFmtp(codec.SDPFmtpLine),
		RtcpFeedback: encodeFeedback(codec.RTCPFeedback),
	}
}

func encodeCodecCapability(kind types.MediaKind, codec webrtc.RTPCodecParameters) types.RtpCodecCapability {
	return types.RtpCodecCapability{
		Kind:                 kind,
		MimeType:             codec.MimeType,
		PreferredPayloadType: uint8(codec.PayloadType),
		ClockRate:            codec.ClockRate,
		Channels:             codec.Channels,
		Parameters:           decodeFmtp(codec.SDPFmtpLine),
		RtcpFeedback:         encodeFeedback(codec.RTCPFeedback),
	}
}
