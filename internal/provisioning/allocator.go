package provisioning

import (
	"context"
	"errors"
	"log/slog"

	"github.com/navikt/roomswitch/internal/models"
)

// MeetingCreator provisions one room per call
type MeetingCreator interface {
	CreateMeeting(ctx context.Context) (models.RoomID, error)
}

// Recorder receives the outcome of each provisioning call
type Recorder interface {
	ProvisioningResult(ok bool)
}

// Allocator obtains room pairs from the provisioning service
type Allocator struct {
	creator  MeetingCreator
	recorder Recorder
	logger   *slog.Logger
}

// NewAllocator creates an allocator on top of a meeting creator
func NewAllocator(creator MeetingCreator, recorder Recorder, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		creator:  creator,
		recorder: recorder,
		logger:   logger,
	}
}

// Allocate provisions two rooms. Either both identifiers are returned or an error and no pair.
func (a *Allocator) Allocate(ctx context.Context) (models.RoomPair, error) {
	roomA, err := a.create(ctx)
	if err != nil {
		return models.RoomPair{}, err
	}

	roomB, err := a.create(ctx)
	if err != nil {
		a.logger.Warn("discarding half-allocated room pair", "room_a", roomA.String())
		return models.RoomPair{}, err
	}

	pair := models.RoomPair{RoomA: roomA, RoomB: roomB}
	a.logger.Info("allocated room pair", "room_a", roomA.String(), "room_b", roomB.String())
	return pair, nil
}

// FromExternalID wraps a single known room, such as one joined by link
func (a *Allocator) FromExternalID(id models.RoomID) models.RoomPair {
	return models.PairFromExternalID(id)
}

func (a *Allocator) create(ctx context.Context) (models.RoomID, error) {
	id, err := a.creator.CreateMeeting(ctx)
	if err == nil && id == "" {
		err = &ProvisioningError{Message: "provisioning returned no identifier"}
	}
	var perr *ProvisioningError
	if err != nil && !errors.As(err, &perr) {
		err = &ProvisioningError{Message: "provisioning call failed", Err: err}
	}
	if a.recorder != nil {
		a.recorder.ProvisioningResult(err == nil)
	}
	if err != nil {
		a.logger.Error("room provisioning failed", "error", err)
		return "", err
	}
	return id, nil
}
