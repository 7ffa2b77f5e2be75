package realtime

import "encoding/json"

// Inbound events (client -> server).
const (
	EventJoin               = "join"
	EventLeave              = "leave"
	EventICECandidate       = "ice-candidate"
	EventSessionDescription = "session-description"
	EventChatMessage        = "chat-message"
	EventReaction           = "reaction"
	EventRaiseHand          = "raise-hand"
	EventLowerHand          = "lower-hand"
	EventStartScreenShare   = "start-screen-share"
	EventStopScreenShare    = "stop-screen-share"
	EventMuteAll            = "mute-all"
)

// Outbound-only events (server -> client). Relayed events reuse the inbound names.
const (
	EventNewParticipant       = "new-participant"
	EventExistingParticipants = "existing-participants"
	EventUserLeft             = "user-left"
	EventScreenShareDenied    = "screen-share-denied"
)

// ReasonShareTaken is sent with screen-share-denied.
const ReasonShareTaken = "Another participant is already sharing"

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type iceIn struct {
	Candidate json.RawMessage `json:"candidate"`
	TargetID  string          `json:"targetId"`
}

type iceOut struct {
	FromID    string          `json:"fromId"`
	Candidate json.RawMessage `json:"candidate"`
}

type sdpIn struct {
	SDP      json.RawMessage `json:"sdp"`
	TargetID string          `json:"targetId"`
}

type sdpOut struct {
	FromID string          `json:"fromId"`
	SDP    json.RawMessage `json:"sdp"`
}

type handPayload struct {
	UserID string `json:"userId"`
}

type muteAllPayload struct {
	FromID string `json:"fromId"`
}

// sharePayload announces the current sharer; SharerID nil encodes as null when the slot is cleared.
type sharePayload struct {
	FromID   string  `json:"fromId"`
	SharerID *string `json:"sharerId"`
}

type deniedPayload struct {
	Reason string `json:"reason"`
}

type userLeftPayload struct {
	ID string `json:"id"`
}
