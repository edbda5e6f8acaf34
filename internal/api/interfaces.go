package api

import (
	"context"

	"github.com/navikt/roomswitch/internal/models"
)

// RoomServicer defines the room actions needed by API handlers
type RoomServicer interface {
	PrepareAndJoin(ctx context.Context) (models.RoomPair, error)
	JoinByID(ctx context.Context, id models.RoomID) (models.RoomPair, error)
	ClearRooms(ctx context.Context) error

	SwitchRoom(ctx context.Context) (models.RoomID, error)
	Leave(ctx context.Context) error
	ToggleMic(ctx context.Context) error
	ToggleWebcam(ctx context.Context) error

	StartRelay(ctx context.Context) error
	StopRelay(ctx context.Context) error

	Status(ctx context.Context) models.Status
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error
