package models

// EventKind is the normalized name of a transport event
type EventKind string

const (
	EventMeetingJoined             EventKind = "meeting-joined"
	EventMeetingLeft               EventKind = "meeting-left"
	EventMediaRelayRequestReceived EventKind = "media-relay-request-received"
	EventMediaRelayRequestResponse EventKind = "media-relay-request-response"
	EventMediaRelayStarted         EventKind = "media-relay-started"
	EventMediaRelayStopped         EventKind = "media-relay-stopped"
	EventMediaRelayError           EventKind = "media-relay-error"
)

// MeetingJoinedEvent confirms the local participant joined a room
type MeetingJoinedEvent struct {
	MeetingID RoomID `json:"meetingId,omitempty"`
}

// MeetingLeftEvent confirms the local participant left its room
type MeetingLeftEvent struct {
	MeetingID RoomID `json:"meetingId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RelayRequestReceivedEvent is an inbound request to relay a peer's media into our room
type RelayRequestReceivedEvent struct {
	SourceMeetingID RoomID `json:"sourceMeetingId"`
	ParticipantID   string `json:"participantId"`
}

// RelayRequestResponseEvent is the destination room's answer to our relay request
type RelayRequestResponseEvent struct {
	ParticipantID string   `json:"participantId"`
	Decision      Decision `json:"decision"`
}

// RelayStartedEvent reports that media is flowing to MeetingID
type RelayStartedEvent struct {
	MeetingID RoomID `json:"meetingId"`
}

// RelayStoppedEvent reports that the relay to MeetingID ended
type RelayStoppedEvent struct {
	MeetingID RoomID `json:"meetingId"`
	Reason    string `json:"reason,omitempty"`
}

// RelayErrorEvent reports a relay failure, usually a token or permission problem
type RelayErrorEvent struct {
	MeetingID RoomID `json:"meetingId"`
	Error     string `json:"error,omitempty"`
}
