package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/divanscraper/internal/types"
)

// FileFetcher reads saved pages from disk. Requests carry file:// URLs.
type FileFetcher struct {
	logger *slog.Logger
}

// NewFileFetcher creates a fetcher for file:// URLs.
func NewFileFetcher(logger *slog.Logger) *FileFetcher {
	return &FileFetcher{logger: logger.With("component", "file_fetcher")}
}

// Fetch reads the file named by req.URL.
func (f *FileFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if req.URL == nil || req.URL.Scheme != "file" {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("%w: not a file URL", types.ErrInvalidURL)}
	}

	start := time.Now()
	body, err := os.ReadFile(req.URL.Path)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	body, _, err = toUTF8(body, "text/html")
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	f.logger.Debug("file read", "path", req.URL.Path, "size", len(body))
	return types.NewBodyResponse(req, 200, body, req.URLString(), time.Since(start)), nil
}

func (f *FileFetcher) Close() error { return nil }

func (f *FileFetcher) Type() string { return "file" }
