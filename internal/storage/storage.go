// Package storage writes the accumulated product records out. The CSV
// table is the primary destination; MongoDB and Redis can mirror it.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Flush replaces the destination's content with records, in order.
	// An empty slice leaves the destination untouched.
	Flush(ctx context.Context, records []types.Record) error

	// Close releases connections and file handles.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New builds the storage configured by cfg: the CSV table, plus any
// enabled mirrors behind a MultiStorage.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	csvStore, err := NewCSVStorage(cfg.OutputPath, cfg.VerifyAfterWrite, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Mongo.Enabled && !cfg.Redis.Enabled {
		return csvStore, nil
	}

	backends := []Storage{csvStore}
	if cfg.Mongo.Enabled {
		m, err := NewMongoStorage(ctx, cfg.Mongo, logger)
		if err != nil {
			closeAll(backends)
			return nil, fmt.Errorf("mongo mirror: %w", err)
		}
		backends = append(backends, m)
	}
	if cfg.Redis.Enabled {
		r, err := NewRedisStorage(ctx, cfg.Redis, logger)
		if err != nil {
			closeAll(backends)
			return nil, fmt.Errorf("redis mirror: %w", err)
		}
		backends = append(backends, r)
	}
	return NewMultiStorage(backends, logger), nil
}

func closeAll(backends []Storage) {
	for _, b := range backends {
		_ = b.Close()
	}
}
