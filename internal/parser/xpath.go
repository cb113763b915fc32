package parser

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/divanscraper/internal/types"
)

// XPathLocator finds cards with an XPath expression via htmlquery.
type XPathLocator struct {
	cardExpr string
	logger   *slog.Logger
}

// NewXPathLocator creates a new XPath locator. The expression is compiled
// once up front so a typo fails at startup rather than on every page.
func NewXPathLocator(cardExpr string, logger *slog.Logger) (*XPathLocator, error) {
	if _, err := htmlquery.QueryAll(&html.Node{Type: html.DocumentNode}, cardExpr); err != nil {
		return nil, fmt.Errorf("compile card xpath %q: %w", cardExpr, err)
	}
	return &XPathLocator{
		cardExpr: cardExpr,
		logger:   logger.With("component", "xpath_locator"),
	}, nil
}

// Cards implements Locator.
func (l *XPathLocator) Cards(resp *types.Response) ([]Card, error) {
	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Selector: l.cardExpr, Err: err}
	}

	nodes, err := htmlquery.QueryAll(doc, l.cardExpr)
	if err != nil {
		return nil, &types.ParseError{URL: resp.Request.URLString(), Selector: l.cardExpr, Err: err}
	}

	cards := make([]Card, len(nodes))
	for i, n := range nodes {
		cards[i] = &xpathCard{node: n}
	}

	l.logger.Debug("cards located", "url", resp.FinalURL, "count", len(cards))
	return cards, nil
}

// xpathCard adapts an html.Node to Card. Queries are relative XPath
// expressions such as `.//a`.
type xpathCard struct {
	node *html.Node
}

// NewXPathCard wraps a parsed node as a Card.
func NewXPathCard(n *html.Node) Card {
	return &xpathCard{node: n}
}

func (c *xpathCard) TextOf(expr string) (string, error) {
	nodes, err := htmlquery.QueryAll(c.node, expr)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		if text, ok := directText(n); ok {
			return text, nil
		}
	}
	return "", types.ErrNotFound
}

func (c *xpathCard) AttrOf(expr, name string) (string, error) {
	nodes, err := htmlquery.QueryAll(c.node, expr)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		if val, ok := attr(n, name); ok {
			return val, nil
		}
	}
	return "", types.ErrNotFound
}

func (c *xpathCard) AllText() []string {
	return textNodes(c.node, nil)
}
