package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is issued outside its valid source state
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrSwitchInProgress is returned when a session operation races an in-flight room switch
	ErrSwitchInProgress = errors.New("room switch already in progress")
	// ErrPairIncomplete is returned when switch or relay needs both rooms of the pair
	ErrPairIncomplete = errors.New("room pair incomplete: relay and switch unavailable")
	// ErrPairNotFound is returned by pair stores when no pair has been saved
	ErrPairNotFound = errors.New("room pair not found")
)

// SessionState represents where the local participant is in the membership lifecycle
type SessionState int

const (
	SessionDisconnected SessionState = iota
	SessionJoining
	SessionJoined
	SessionLeaving
)

// String returns the string representation of a session state
func (s SessionState) String() string {
	return [...]string{"disconnected", "joining", "joined", "leaving"}[s]
}

// MarshalText renders the state by name in JSON payloads
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the local participant's membership in exactly one room
type Session struct {
	MeetingID   RoomID       `json:"meeting_id"`
	AuthToken   string       `json:"-"`
	DisplayName string       `json:"display_name"`
	State       SessionState `json:"state"`
}

// DisplayNameFor builds the default participant name shown in a room
func DisplayNameFor(id RoomID) string {
	return fmt.Sprintf("Participant (%s...)", id.Short())
}
