// Package fetcher retrieves listing pages for the crawl session. Pages
// come over plain HTTP, from a headless browser, or from local files.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New creates the fetcher selected by cfg.Type.
func New(cfg config.FetcherConfig, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Type {
	case "", "http":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	case "file":
		return NewFileFetcher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Type)
	}
}

// toUTF8 converts body to UTF-8 using the Content-Type header and any
// <meta charset> declaration. UTF-8 input is returned unchanged. Without
// a declared charset, a body that is valid UTF-8 throughout stays UTF-8;
// the sniffer only sees the first 1024 bytes and would otherwise guess
// windows-1252 for a page with a long ASCII head.
func toUTF8(body []byte, contentType string) ([]byte, string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") || (!certain && utf8.Valid(body)) {
		return body, "utf-8", nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, enc.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, name, fmt.Errorf("decode %s body: %w", name, err)
	}
	return buf.Bytes(), name, nil
}
