// Package parser turns a fetched listing page into product cards.
//
// The rest of the module only sees the Card interface; the concrete
// markup library (goquery for CSS selectors, htmlquery for XPath) stays
// behind the two Locator implementations in this package.
package parser

import (
	"fmt"
	"log/slog"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// Card is a read-only view of one product card on a listing page.
// A card is only valid while its page document is alive.
type Card interface {
	// TextOf returns the first direct text node among elements matching
	// selector, in document order. It returns types.ErrNotFound when no
	// matching element carries a text node.
	TextOf(selector string) (string, error)

	// AttrOf returns the named attribute of the first matching element
	// that has it. It returns types.ErrNotFound when none does.
	AttrOf(selector, name string) (string, error)

	// AllText returns every text node under the card in document order,
	// untrimmed.
	AllText() []string
}

// Locator finds product cards on a page.
type Locator interface {
	// Cards returns the cards on the page in document order. Every match
	// is returned, even ones that will later yield nothing.
	Cards(resp *types.Response) ([]Card, error)
}

// NewLocator builds the locator for the configured selector backend.
func NewLocator(cfg config.SelectorsConfig, logger *slog.Logger) (Locator, error) {
	q := cfg.Active()
	switch cfg.Backend {
	case "css", "":
		return NewCSSLocator(q.Card, logger), nil
	case "xpath":
		return NewXPathLocator(q.Card, logger)
	default:
		return nil, fmt.Errorf("unsupported selector backend: %s", cfg.Backend)
	}
}
