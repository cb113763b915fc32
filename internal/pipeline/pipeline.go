// Package pipeline cleans raw card records and decides which of them
// become finished product records.
package pipeline

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// PriceSuffix is appended to every formatted price.
const PriceSuffix = " руб."

// Normalizer turns raw records into finished ones. It is pure apart from
// debug logging and safe for concurrent use.
type Normalizer struct {
	minPrice int64
	category string
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer that admits records priced at or
// above cfg.MinPrice and labels them with category.
func NewNormalizer(cfg config.PipelineConfig, category string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		minPrice: cfg.MinPrice,
		category: category,
		logger:   logger.With("component", "normalizer"),
	}
}

// Normalize cleans raw and applies the admission rule. The second result
// is false when the record is dropped; no Record is built in that case.
func (n *Normalizer) Normalize(raw types.RawRecord) (types.Record, bool) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = types.UnknownName
	}

	priceText := types.PriceNotSpecified
	if raw.HasPrice() {
		priceText = strings.TrimSpace(raw.Price)
	}
	price := ParsePrice(priceText)

	if price < n.minPrice {
		n.logger.Debug("record dropped", "name", name, "price_text", priceText, "price", price, "min_price", n.minPrice)
		return types.Record{}, false
	}

	link := types.LinkNotFound
	if raw.HasURL() {
		link = raw.URL
	}

	return types.Record{
		Name:           name,
		Price:          price,
		FormattedPrice: FormatPrice(price),
		URL:            link,
		Category:       n.category,
	}, true
}

// ParsePrice reads an integer price out of free text such as
// "13 990 руб.". Everything but decimal digits and whitespace is
// discarded, the whitespace is then removed, and the remaining digits are
// read in any script ("١٢٣" is 123). An empty or overflowing result
// yields 0.
func ParsePrice(text string) int64 {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	digits := strings.Join(strings.Fields(cleaned), "")
	if digits == "" {
		return 0
	}

	var price int64
	for _, r := range digits {
		d := int64(digitValue(r))
		if price > (math.MaxInt64-d)/10 {
			return 0
		}
		price = price*10 + d
	}
	return price
}

// digitValue returns the value of a decimal digit rune. Decimal digits are
// encoded in contiguous runs starting at zero, so the value is the
// distance from the start of the run modulo ten.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10
}

// FormatPrice groups the digits of price in threes separated by a space
// and appends PriceSuffix: 13990 becomes "13 990 руб.".
func FormatPrice(price int64) string {
	s := strconv.FormatInt(price, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(PriceSuffix)
	return b.String()
}
