// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/models"
	"github.com/redis/go-redis/v9"
)

// pairState is the internal model for storing the room pair in Redis
type pairState struct {
	RoomA   string    `json:"room_a"`
	RoomB   string    `json:"room_b,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Repository implements the repository interface with Redis storage
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB from config if not specified in the URI
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		// Use password from config if not in URI
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		address := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

		client = redis.NewClient(&redis.Options{
			Addr:     address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.PairTTL,
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// pairKey returns the Redis key for the current room pair
func (r *Repository) pairKey() string {
	return fmt.Sprintf("%spair:current", r.keyPrefix)
}

// SavePair replaces the stored room pair
func (r *Repository) SavePair(ctx context.Context, pair models.RoomPair) error {
	state := pairState{
		RoomA:   pair.RoomA.String(),
		RoomB:   pair.RoomB.String(),
		SavedAt: time.Now(),
	}

	data, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to marshal room pair: %w", err)
	}

	if err := r.client.Set(ctx, r.pairKey(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save room pair: %w", err)
	}

	return nil
}

// GetPair retrieves the stored room pair. Every read restarts the TTL, so a
// pair in use does not expire under a joined session.
func (r *Repository) GetPair(ctx context.Context) (models.RoomPair, error) {
	var cmd *redis.StringCmd
	if r.ttl > 0 {
		cmd = r.client.GetEx(ctx, r.pairKey(), r.ttl)
	} else {
		cmd = r.client.Get(ctx, r.pairKey())
	}
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RoomPair{}, models.ErrPairNotFound
		}
		return models.RoomPair{}, fmt.Errorf("failed to get room pair: %w", err)
	}

	var state pairState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.RoomPair{}, fmt.Errorf("failed to unmarshal room pair: %w", err)
	}

	return models.RoomPair{
		RoomA: models.RoomID(state.RoomA),
		RoomB: models.RoomID(state.RoomB),
	}, nil
}

// ClearPair removes the stored room pair
func (r *Repository) ClearPair(ctx context.Context) error {
	if err := r.client.Del(ctx, r.pairKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear room pair: %w", err)
	}
	return nil
}
