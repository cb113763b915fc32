package parser

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/divanscraper/internal/types"
)

// CSSLocator finds cards with a CSS selector via goquery.
type CSSLocator struct {
	cardSelector string
	logger       *slog.Logger
}

// NewCSSLocator creates a new CSS selector locator.
func NewCSSLocator(cardSelector string, logger *slog.Logger) *CSSLocator {
	return &CSSLocator{
		cardSelector: cardSelector,
		logger:       logger.With("component", "css_locator"),
	}
}

// Cards implements Locator.
func (l *CSSLocator) Cards(resp *types.Response) ([]Card, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{
			URL:      resp.Request.URLString(),
			Selector: l.cardSelector,
			Err:      err,
		}
	}

	matches := doc.Find(l.cardSelector)
	cards := make([]Card, 0, matches.Length())
	matches.Each(func(_ int, sel *goquery.Selection) {
		cards = append(cards, &cssCard{sel: sel})
	})

	l.logger.Debug("cards located", "url", resp.FinalURL, "count", len(cards))
	return cards, nil
}

// cssCard adapts a goquery selection to Card.
type cssCard struct {
	sel *goquery.Selection
}

// NewCSSCard wraps a goquery selection as a Card.
func NewCSSCard(sel *goquery.Selection) Card {
	return &cssCard{sel: sel}
}

func (c *cssCard) TextOf(selector string) (string, error) {
	var (
		text  string
		found bool
	)
	c.sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text, found = directText(s.Get(0))
		return !found
	})
	if !found {
		return "", types.ErrNotFound
	}
	return text, nil
}

func (c *cssCard) AttrOf(selector, name string) (string, error) {
	var (
		val   string
		found bool
	)
	c.sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		val, found = s.Attr(name)
		return !found
	})
	if !found {
		return "", types.ErrNotFound
	}
	return val, nil
}

func (c *cssCard) AllText() []string {
	var out []string
	for _, n := range c.sel.Nodes {
		out = textNodes(n, out)
	}
	return out
}
