package models

// RelayState represents the lifecycle of the outbound media relay link
type RelayState int

const (
	RelayIdle RelayState = iota
	RelayRequesting
	RelayActive
	RelayStopping
)

// String returns the string representation of a relay state
func (s RelayState) String() string {
	return [...]string{"idle", "requesting", "active", "stopping"}[s]
}

// MarshalText renders the state by name in JSON payloads
func (s RelayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MediaKind is a kind of media track that can be relayed
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// DefaultRelayKinds is what gets relayed when nothing else is configured
var DefaultRelayKinds = []MediaKind{MediaVideo, MediaAudio}

// Decision is the answer to an inbound relay request
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// RelayLink is the single one-directional relay from the current room into the other room
type RelayLink struct {
	SourceMeetingID      RoomID     `json:"source_meeting_id"`
	DestinationMeetingID RoomID     `json:"destination_meeting_id"`
	State                RelayState `json:"state"`
}
