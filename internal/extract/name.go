package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/IshaanNene/divanscraper/internal/parser"
)

var (
	productSlugRe = regexp.MustCompile(`/product/([^/?]+)`)
	dimensionsRe  = regexp.MustCompile(`\d+x\d+x\d+`)
)

// NameFromURL derives a display name from the /product/<slug> segment of
// a product URL: hyphens become spaces and every word is title-cased.
func NameFromURL(rawURL string) (string, bool) {
	m := productSlugRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return titleCase(strings.ReplaceAll(m[1], "-", " ")), true
}

// nameFromCard picks the longest text node on the card that does not look
// like a price, a button label, a badge or a dimensions line.
func (e *Extractor) nameFromCard(card parser.Card) (string, bool) {
	var (
		best    string
		bestLen = -1
	)
	for _, raw := range card.AllText() {
		text := strings.TrimSpace(raw)
		if text == "" || !e.nameCandidate(text) {
			continue
		}
		// Strict comparison keeps the first of equally long candidates.
		if n := utf8.RuneCountInString(text); n > bestLen {
			best, bestLen = text, n
		}
	}
	return best, bestLen >= 0
}

func (e *Extractor) nameCandidate(text string) bool {
	if e.currency != "" && strings.Contains(strings.ToLower(text), e.currency) {
		return false
	}
	if e.excluded[text] {
		return false
	}
	if dimensionsRe.MatchString(text) {
		return false
	}
	return utf8.RuneCountInString(text) >= e.minNameLen
}

// titleCase upper-cases a cased rune that follows an uncased one and
// lower-cases the rest, so "torsher ralf-2x" becomes "Torsher Ralf-2X".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && !prevCased:
			r = unicode.ToTitle(r)
		case cased:
			r = unicode.ToLower(r)
		}
		prevCased = cased
		b.WriteRune(r)
	}
	return b.String()
}
