package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/divanscraper/internal/types"
)

// CSVStorage writes the full record list to a CSV file on every flush,
// replacing whatever the file held before.
type CSVStorage struct {
	path    string
	verify  bool
	mu      sync.Mutex
	flushes int
	logger  *slog.Logger
}

// NewCSVStorage creates a CSV table at outputPath. The file itself is not
// created until the first non-empty flush. With verify set, every
// successful write is followed by a stat of the file.
func NewCSVStorage(outputPath string, verify bool, logger *slog.Logger) (*CSVStorage, error) {
	if outputPath == "" {
		return nil, &types.StorageError{Backend: "csv", Err: errors.New("empty output path")}
	}
	return &CSVStorage{
		path:   outputPath,
		verify: verify,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Flush(_ context.Context, records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		s.logger.Info("no records to save", "path", s.path)
		return nil
	}

	if err := s.write(records); err != nil {
		s.logger.Error("save failed", "path", s.path, "error", err)
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.flushes++
	s.logger.Info("records saved", "path", s.path, "rows", len(records), "flush", s.flushes)

	if s.verify {
		info, err := os.Stat(s.path)
		if err != nil {
			s.logger.Error("output file missing after write", "path", s.path, "error", err)
		} else {
			s.logger.Info("output file verified", "path", s.path, "size_bytes", info.Size())
		}
	}
	return nil
}

func (s *CSVStorage) write(records []types.Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(types.CSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			f.Close()
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush CSV: %w", err)
	}
	return f.Close()
}

func (s *CSVStorage) Close() error {
	s.logger.Debug("csv storage closed", "path", s.path, "flushes", s.flushes)
	return nil
}
