// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sync"

	"github.com/navikt/roomswitch/internal/models"
)

// Repository implements the repository interface with in-memory storage
type Repository struct {
	pair  models.RoomPair
	saved bool
	mu    sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{}
}

// SavePair replaces the stored room pair
func (r *Repository) SavePair(ctx context.Context, pair models.RoomPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pair = pair
	r.saved = true
	return nil
}

// GetPair returns the stored room pair
func (r *Repository) GetPair(ctx context.Context) (models.RoomPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.saved {
		return models.RoomPair{}, models.ErrPairNotFound
	}
	return r.pair, nil
}

// ClearPair forgets the stored room pair
func (r *Repository) ClearPair(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pair = models.RoomPair{}
	r.saved = false
	return nil
}
