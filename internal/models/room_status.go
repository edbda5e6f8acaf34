package models

import "time"

// NoticeLevel classifies a user-visible notice
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a message that must reach the user, such as a relay rejection
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// Status is a read-only snapshot of the pair, session and relay for display purposes
type Status struct {
	Pair           RoomPair     `json:"pair"`
	SessionState   SessionState `json:"session_state"`
	CurrentRoom    RoomID       `json:"current_room,omitempty"`
	DisplayName    string       `json:"display_name,omitempty"`
	MicEnabled     bool         `json:"mic_enabled"`
	WebcamEnabled  bool         `json:"webcam_enabled"`
	Switching      bool         `json:"switching"`
	RelayState     RelayState   `json:"relay_state"`
	RelayTarget    RoomID       `json:"relay_target,omitempty"`
	RelayAvailable bool         `json:"relay_available"`
}
