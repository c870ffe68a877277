package types

// Wire representations of the media negotiation parameters. Field names
// follow what browser clients already send for mediasoup style transports.

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite,omitempty"`
}

type IceCandidate struct {
	Foundation     string `json:"foundation"`
	Priority       uint32 `json:"priority"`
	IP             string `json:"ip"`
	Protocol       string `json:"protocol"`
	Port           uint16 `json:"port"`
	Type           string `json:"type"`
	TCPType        string `json:"tcpType,omitempty"`
	RelatedAddress string `json:"relatedAddress,omitempty"`
	RelatedPort    uint16 `json:"relatedPort,omitempty"`
}

type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DtlsParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// IceServer is a STUN or TURN server the client may use to reach the
// media server.
type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// TransportInfo is what the client needs to build its side of a transport.
type TransportInfo struct {
	ID             string         `json:"id"`
	IceParameters  IceParameters  `json:"iceParameters"`
	IceCandidates  []IceCandidate `json:"iceCandidates"`
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
	IceServers     []IceServer    `json:"iceServers,omitempty"`
}

// ConnectParams is the remote half of a transport handshake.
type ConnectParams struct {
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
	IceParameters  *IceParameters `json:"iceParameters,omitempty"`
	IceCandidates  []IceCandidate `json:"iceCandidates,omitempty"`
}

type RtcpFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

type RtpCodecCapability struct {
	Kind                 MediaKind              `json:"kind"`
	MimeType             string                 `json:"mimeType"`
	PreferredPayloadType uint8                  `json:"preferredPayloadType,omitempty"`
	ClockRate            uint32                 `json:"clockRate"`
	Channels             uint16                 `json:"channels,omitempty"`
	Parameters           map[string]interface{} `json:"parameters,omitempty"`
	RtcpFeedback         []RtcpFeedback         `json:"rtcpFeedback,omitempty"`
}

type RtpHeaderExtension struct {
	Kind        MediaKind `json:"kind,omitempty"`
	URI         string    `json:"uri"`
	PreferredID int       `json:"preferredId"`
}

type RtpCapabilities struct {
	Codecs           []RtpCodecCapability `json:"codecs"`
	HeaderExtensions []RtpHeaderExtension `json:"headerExtensions,omitempty"`
}

type RtpCodecParameters struct {
	MimeType     string                 `json:"mimeType"`
	PayloadType  uint8                  `json:"payloadType"`
	ClockRate    uint32                 `json:"clockRate"`
	Channels     uint16                 `json:"channels,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	RtcpFeedback []RtcpFeedback         `json:"rtcpFeedback,omitempty"`
}

type RtxParameters struct {
	Ssrc uint32 `json:"ssrc"`
}

type RtpEncodingParameters struct {
	Ssrc       uint32         `json:"ssrc,omitempty"`
	Rid        string         `json:"rid,omitempty"`
	Rtx        *RtxParameters `json:"rtx,omitempty"`
	MaxBitrate uint64         `json:"maxBitrate,omitempty"`
}

type RtpHeaderExtensionParameters struct {
	URI string `json:"uri"`
	ID  int    `json:"id"`
}

type RtcpParameters struct {
	Cname       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize"`
}

type RtpParameters struct {
	Mid              string                         `json:"mid,omitempty"`
	Codecs           []RtpCodecParameters           `json:"codecs"`
	HeaderExtensions []RtpHeaderExtensionParameters `json:"headerExtensions,omitempty"`
	Encodings        []RtpEncodingParameters        `json:"encodings,omitempty"`
	Rtcp             *RtcpParameters                `json:"rtcp,omitempty"`
}

// ConsumerInfo describes a consumer freshly created by the media engine.
// Consumers always start paused.
type ConsumerInfo struct {
	ID             string        `json:"id"`
	ProducerID     string        `json:"producerId"`
	Kind           MediaKind     `json:"kind"`
	RtpParameters  RtpParameters `json:"rtpParameters"`
	Type           string        `json:"type"`
	ProducerPaused bool          `json:"producerPaused"`
}
