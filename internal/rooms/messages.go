package rooms

import "encoding/json"

// Client-to-server message types.
const (
	TypeJoinRoom         = "join-room"
	TypeOffer            = "webrtc-offer"
	TypeAnswer           = "webrtc-answer"
	TypeCandidate        = "ice-candidate"
	TypeRecordingStarted = "recording-started"
	TypeRecordingStopped = "recording-stopped"
)

// Server-to-client message types. The relayed signal types reuse the
// client-to-server names.
const (
	TypeRoomJoined = "room-joined"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
)

// Inbound is the envelope for every client message. The offer, answer
// and candidate payloads are opaque to the relay: they are captured
// raw and forwarded verbatim, never inspected.
type Inbound struct {
	Type           string          `json:"type"`
	RoomID         string          `json:"roomId,omitempty"`
	TargetSocketID string          `json:"targetSocketId,omitempty"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
}

// ParticipantInfo identifies one room member to its peers.
type ParticipantInfo struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// roomJoined answers a join request with the members already present,
// excluding the joiner. Participants is always a list, never null.
type roomJoined struct {
	Type         string            `json:"type"`
	RoomID       string            `json:"roomId"`
	Participants []ParticipantInfo `json:"participants"`
}

// userEvent announces a join or departure to the other members.
type userEvent struct {
	Type string `json:"type"`
	ParticipantInfo
}

// signalForward carries a relayed negotiation payload to its target,
// stamped with the sender's socket id for provenance.
type signalForward struct {
	Type         string          `json:"type"`
	FromSocketID string          `json:"fromSocketId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// roomEvent is an unaddressed room-wide notification with no payload,
// e.g. recording toggles.
type roomEvent struct {
	Type string `json:"type"`
}
