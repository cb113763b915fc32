package storage

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/divanscraper/internal/types"
)

// MultiStorage writes records to multiple backends in order.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

// Flush writes to every backend even after a failure and returns the
// first error seen.
func (s *MultiStorage) Flush(ctx context.Context, records []types.Record) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Flush(ctx, records); err != nil {
			s.logger.Error("backend flush failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
