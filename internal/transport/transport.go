// Package transport talks to the real-time transport that hosts the rooms
package transport

import (
	"context"
	"encoding/json"

	"github.com/navikt/roomswitch/internal/models"
)

// Command types sent to the transport gateway
const (
	TypeJoin                = "join"
	TypeLeave               = "leave"
	TypeToggleMic           = "toggle_mic"
	TypeToggleWebcam        = "toggle_webcam"
	TypeRequestMediaRelay   = "request_media_relay"
	TypeStopMediaRelay      = "stop_media_relay"
	TypeRespondToMediaRelay = "respond_to_media_relay"

	// TypeAck answers a command carrying the same envelope id
	TypeAck = "ack"
)

// JoinConfig is the payload of a join command
type JoinConfig struct {
	MeetingID     models.RoomID `json:"meetingId"`
	Token         string        `json:"token"`
	Name          string        `json:"name"`
	MicEnabled    bool          `json:"micEnabled"`
	WebcamEnabled bool          `json:"webcamEnabled"`
}

// RelayRequest is the payload of a request_media_relay command
type RelayRequest struct {
	DestinationMeetingID models.RoomID      `json:"destinationMeetingId"`
	Token                string             `json:"token"`
	Kinds                []models.MediaKind `json:"kinds"`
}

// StopRelayRequest is the payload of a stop_media_relay command
type StopRelayRequest struct {
	DestinationMeetingID models.RoomID `json:"destinationMeetingId"`
}

// RelayResponse is the payload of a respond_to_media_relay command
type RelayResponse struct {
	SourceMeetingID models.RoomID   `json:"sourceMeetingId"`
	Decision        models.Decision `json:"decision"`
}

// RawEvent is an event exactly as the transport delivered it
type RawEvent struct {
	Name    string
	Payload json.RawMessage
}

// Transport is the set of operations and the event stream consumed from the real-time transport
type Transport interface {
	Join(ctx context.Context, cfg JoinConfig) error
	Leave(ctx context.Context) error
	ToggleMic(ctx context.Context) error
	ToggleWebcam(ctx context.Context) error
	RequestMediaRelay(ctx context.Context, req RelayRequest) error
	StopMediaRelay(ctx context.Context, destination models.RoomID) error
	RespondToMediaRelay(ctx context.Context, source models.RoomID, decision models.Decision) error
	// Events delivers transport events in order. It is closed when the transport goes away.
	Events() <-chan RawEvent
}
