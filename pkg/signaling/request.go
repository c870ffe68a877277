package signaling

import (
	"encoding/json"

	"ws-class-server/pkg/types"
)

type requirement uint16

const (
	needClass requirement = 1 << iota
	needParticipant
	needOther
	needKind
	needRtpParameters
	needRtpCapabilities
	needDtls
)

// request is the union of every inbound payload field. Clients may name the
// participant userId and the peer otherStudentId or studentId.
type request struct {
	ClassID            string                 `json:"classId"`
	ParticipantID      string                 `json:"participantId"`
	UserID             string                 `json:"userId"`
	OtherParticipantID string                 `json:"otherParticipantId"`
	OtherStudentID     string                 `json:"otherStudentId"`
	StudentID          string                 `json:"studentId"`
	Kind               types.MediaKind        `json:"kind"`
	RtpParameters      *types.RtpParameters   `json:"rtpParameters"`
	RtpCapabilities    *types.RtpCapabilities `json:"rtpCapabilities"`
	types.ConnectParams

	raw json.RawMessage
}

func (r *request) participant() string {
	if r.ParticipantID != "" {
		return r.ParticipantID
	}
	return r.UserID
}

func (r *request) other() string {
	switch {
	case r.OtherParticipantID != "":
		return r.OtherParticipantID
	case r.OtherStudentID != "":
		return r.OtherStudentID
	default:
		return r.StudentID
	}
}

func decodeRequest(data json.RawMessage, needs requirement) (*request, error) {
	req := &request{raw: data}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, badRequest("malformed payload: %v", err)
		}
	}

	switch {
	case needs&needClass != 0 && req.ClassID == "":
		return nil, badRequest("missing classId")
	case needs&needParticipant != 0 && req.participant() == "":
		return nil, badRequest("missing participantId")
	case needs&needOther != 0 && req.other() == "":
		return nil, badRequest("missing otherParticipantId")
	case needs&needKind != 0 && !req.Kind.Valid():
		return nil, badRequest("kind must be audio or video, got %q", req.Kind)
	case needs&needRtpParameters != 0 && req.RtpParameters == nil:
		return nil, badRequest("missing rtpParameters")
	case needs&needRtpCapabilities != 0 && req.RtpCapabilities == nil:
		return nil, badRequest("missing rtpCapabilities")
	case needs&needDtls != 0 && len(req.DtlsParameters.Fingerprints) == 0:
		return nil, badRequest("missing dtlsParameters")
	}
	return req, nil
}

// decodeInto reads handler specific fields from the raw payload.
func (r *request) decodeInto(v interface{}) error {
	if err := json.Unmarshal(r.raw, v); err != nil {
		return badRequest("malformed payload: %v", err)
	}
	return nil
}

type studentPayload struct {
	StudentID string `json:"studentId"`
}

type producedPayload struct {
	ID string `json:"id"`
}

type classDetailsPayload struct {
	ClassDetails *types.ClassDetails `json:"classDetails"`
	State        string              `json:"state"`
}

// consumedPayload carries the video and audio consumers of one source side by
// side. A leg the source is not producing is left out.
type consumedPayload struct {
	ProducerID     string               `json:"producerId,omitempty"`
	ID             string               `json:"id,omitempty"`
	Kind           types.MediaKind      `json:"kind,omitempty"`
	RtpParameters  *types.RtpParameters `json:"rtpParameters,omitempty"`
	Type           string               `json:"type,omitempty"`
	ProducerPaused bool                 `json:"producerPaused"`

	OtherStudentID string `json:"otherStudentId,omitempty"`

	AudioProducerID     string               `json:"audioProducerId,omitempty"`
	AudioID             string               `json:"audioId,omitempty"`
	AudioKind           types.MediaKind      `json:"audioKind,omitempty"`
	AudioRtpParameters  *types.RtpParameters `json:"audioRtpParameters,omitempty"`
	AudioType           string               `json:"audioType,omitempty"`
	AudioProducerPaused bool                 `json:"audioProducerPaused"`
}

func newConsumedPayload(legs map[types.MediaKind]types.ConsumerInfo, otherID string) *consumedPayload {
	p := &consumedPayload{OtherStudentID: otherID}
	if v, ok := legs[types.MediaKindVideo]; ok {
		p.ProducerID = v.ProducerID
		p.ID = v.ID
		p.Kind = v.Kind
		p.RtpParameters = &v.RtpParameters
		p.Type = v.Type
		p.ProducerPaused = v.ProducerPaused
	}
	if a, ok := legs[types.MediaKindAudio]; ok {
		p.AudioProducerID = a.ProducerID
		p.AudioID = a.ID
		p.AudioKind = a.Kind
		p.AudioRtpParameters = &a.RtpParameters
		p.AudioType = a.Type
		p.AudioProducerPaused = a.ProducerPaused
	}
	return p
}

type textboxPayload struct {
	Position json.RawMessage `json:"position"`
	ID       json.RawMessage `json:"id"`
}
