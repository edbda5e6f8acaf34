package repository

import (
	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/repository/memory"
	"github.com/navikt/roomswitch/internal/repository/redis"
)

// NewRepository returns the Redis repository when enabled, otherwise the in-memory one
func NewRepository(cfg config.RedisConfig) (Repository, error) {
	if !cfg.Enabled {
		return memory.NewRepository(), nil
	}

	repo, err := redis.NewRepository(cfg)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
