// Package extract reads a raw product record off a single listing card.
package extract

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/parser"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// Extractor turns cards into raw records. It never fails: a field that
// cannot be read degrades to its absent or placeholder value and a
// warning is logged.
type Extractor struct {
	origin     string
	queries    config.CardQueries
	excluded   map[string]bool
	minNameLen int
	currency   string
	logger     *slog.Logger
}

// New creates an Extractor for the configured site and card queries.
func New(site config.SiteConfig, queries config.CardQueries, cfg config.ExtractConfig, logger *slog.Logger) *Extractor {
	excluded := make(map[string]bool, len(cfg.ExcludedTexts))
	for _, t := range cfg.ExcludedTexts {
		excluded[t] = true
	}
	return &Extractor{
		origin:     strings.TrimRight(site.Origin, "/"),
		queries:    queries,
		excluded:   excluded,
		minNameLen: cfg.MinNameLength,
		currency:   strings.ToLower(cfg.CurrencyMarker),
		logger:     logger.With("component", "extractor"),
	}
}

// Extract reads price, link and name from one card.
func (e *Extractor) Extract(card parser.Card) types.RawRecord {
	raw := types.RawRecord{Name: types.UnknownName}

	price, err := e.price(card)
	if err != nil {
		e.warn(err)
	}
	raw.Price = price

	link, err := e.link(card)
	if err != nil {
		e.warn(err)
	}
	raw.URL = link

	if raw.HasURL() {
		if name, ok := NameFromURL(raw.URL); ok {
			raw.Name = name
			return raw
		}
	}
	if name, ok := e.nameFromCard(card); ok {
		raw.Name = name
	}
	return raw
}

// price returns the raw price text, or "" when the card has none.
func (e *Extractor) price(card parser.Card) (string, error) {
	text, err := card.TextOf(e.queries.Price)
	if errors.Is(err, types.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &types.ExtractError{Field: "price", Err: err}
	}
	return text, nil
}

// link returns the absolute product URL, or "" when the card has no link.
func (e *Extractor) link(card parser.Card) (string, error) {
	href, err := card.AttrOf(e.queries.Link, "href")
	if errors.Is(err, types.ErrNotFound) || (err == nil && href == "") {
		return "", nil
	}
	if err != nil {
		return "", &types.ExtractError{Field: "url", Err: err}
	}
	return Absolutize(e.origin, href), nil
}

func (e *Extractor) warn(err error) {
	var xe *types.ExtractError
	if errors.As(err, &xe) {
		e.logger.Warn("field extraction failed", "field", xe.Field, "error", xe.Err)
		return
	}
	e.logger.Warn("field extraction failed", "error", err)
}

// Absolutize prefixes href with origin unless it already carries an
// http(s) scheme.
func Absolutize(origin, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	origin = strings.TrimRight(origin, "/")
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return origin + href
}
