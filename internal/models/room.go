package models

// RoomID is the opaque identifier of a provisioned meeting room
type RoomID string

// String returns the raw identifier
func (id RoomID) String() string {
	return string(id)
}

// Short returns the first six characters of the identifier for display names
func (id RoomID) Short() string {
	if len(id) <= 6 {
		return string(id)
	}
	return string(id[:6])
}

// RoomPair holds the two rooms a participant can switch and relay between.
// A pair built from an externally supplied id only knows RoomA.
type RoomPair struct {
	RoomA RoomID `json:"room_a"`
	RoomB RoomID `json:"room_b,omitempty"`
}

// PairFromExternalID returns a partial pair for a room joined by id
func PairFromExternalID(id RoomID) RoomPair {
	return RoomPair{RoomA: id}
}

// Complete returns true if both rooms of the pair are known
func (p RoomPair) Complete() bool {
	return p.RoomA != "" && p.RoomB != ""
}

// IsZero returns true if no room is known at all
func (p RoomPair) IsZero() bool {
	return p.RoomA == "" && p.RoomB == ""
}

// Contains returns true if id is one of the pair's rooms
func (p RoomPair) Contains(id RoomID) bool {
	if id == "" {
		return false
	}
	return id == p.RoomA || id == p.RoomB
}

// Other returns the member of the pair that is not id.
// It returns an empty RoomID if the pair is incomplete or id is not a member.
func (p RoomPair) Other(id RoomID) RoomID {
	if !p.Complete() {
		return ""
	}
	switch id {
	case p.RoomA:
		return p.RoomB
	case p.RoomB:
		return p.RoomA
	default:
		return ""
	}
}
