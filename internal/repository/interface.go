// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/navikt/roomswitch/internal/models"
)

// Repository stores the current room pair. Only one pair is ever kept.
type Repository interface {
	// SavePair replaces the stored pair
	SavePair(ctx context.Context, pair models.RoomPair) error
	// GetPair returns models.ErrPairNotFound when nothing is stored
	GetPair(ctx context.Context) (models.RoomPair, error)
	ClearPair(ctx context.Context) error
}
