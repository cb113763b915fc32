package extract

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/parser"
	"github.com/IshaanNene/divanscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestExtractor() *Extractor {
	cfg := config.DefaultConfig()
	return New(cfg.Site, cfg.Selectors.Active(), cfg.Extract, testLogger)
}

// cardFromHTML parses a fragment and wraps its first product card.
func cardFromHTML(t *testing.T, fragment string) parser.Card {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	sel := doc.Find(`div[data-testid="product-card"]`).First()
	if sel.Length() == 0 {
		t.Fatal("fragment has no product card")
	}
	return parser.NewCSSCard(sel)
}

// brokenCard fails every query with a non-ErrNotFound error.
type brokenCard struct {
	texts []string
}

var errBroken = errors.New("broken markup")

func (c *brokenCard) TextOf(string) (string, error)         { return "", errBroken }
func (c *brokenCard) AttrOf(string, string) (string, error) { return "", errBroken }
func (c *brokenCard) AllText() []string                     { return c.texts }

func TestNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.divan.ru/product/torsher-ralf-beige", "Torsher Ralf Beige", true},
		{"https://www.divan.ru/product/podvesnoj-svetilnik-ferum-orange?utm=1", "Podvesnoj Svetilnik Ferum Orange", true},
		{"https://www.divan.ru/product/lampa-2x-led/reviews", "Lampa 2X Led", true},
		{"https://www.divan.ru/product/TORSHER-ralf", "Torsher Ralf", true},
		{"https://www.divan.ru/category/svet", "", false},
		{"https://www.divan.ru/product/", "", false},
	}
	for _, tt := range tests {
		got, ok := NameFromURL(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NameFromURL(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAbsolutize(t *testing.T) {
	tests := []struct {
		href, want string
	}{
		{"/product/x", "https://www.divan.ru/product/x"},
		{"product/x", "https://www.divan.ru/product/x"},
		{"https://www.divan.ru/product/x", "https://www.divan.ru/product/x"},
		{"http://cdn.divan.ru/product/y", "http://cdn.divan.ru/product/y"},
	}
	for _, tt := range tests {
		if got := Absolutize("https://www.divan.ru/", tt.href); got != tt.want {
			t.Errorf("Absolutize(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestExtractNameFromURL(t *testing.T) {
	card := cardFromHTML(t, `<div data-testid="product-card">
		<a href="/product/torsher-ralf-beige">Торшер Ральф</a>
		<span data-testid="price">13 990 руб.</span>
	</div>`)

	raw := newTestExtractor().Extract(card)
	if raw.Name != "Torsher Ralf Beige" {
		t.Errorf("name = %q", raw.Name)
	}
	if raw.Price != "13 990 руб." {
		t.Errorf("price = %q", raw.Price)
	}
	if raw.URL != "https://www.divan.ru/product/torsher-ralf-beige" {
		t.Errorf("url = %q", raw.URL)
	}
}

func TestExtractXPathCards(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<html><body>
	<div data-testid="product-card">
		<a href="/product/podvesnoj-svetilnik-ferum-orange">Подвесной светильник</a>
		<span data-testid="price">4 990 руб.</span>
	</div>
	<div data-testid="product-card">
		<span>Купить</span>
		<p>Бра Смастен White</p>
		<span data-testid="price">990 руб.</span>
	</div>
	</body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := config.DefaultConfig()
	queries := cfg.Selectors.XPath
	nodes := htmlquery.Find(doc, queries.Card)
	if len(nodes) != 2 {
		t.Fatalf("cards = %d, want 2", len(nodes))
	}
	ex := New(cfg.Site, queries, cfg.Extract, testLogger)

	linked := ex.Extract(parser.NewXPathCard(nodes[0]))
	if linked.Name != "Podvesnoj Svetilnik Ferum Orange" || linked.Price != "4 990 руб." {
		t.Errorf("linked card = %+v", linked)
	}
	if linked.URL != "https://www.divan.ru/product/podvesnoj-svetilnik-ferum-orange" {
		t.Errorf("url = %q", linked.URL)
	}

	unlinked := ex.Extract(parser.NewXPathCard(nodes[1]))
	if unlinked.Name != "Бра Смастен White" || unlinked.URL != "" || unlinked.Price != "990 руб." {
		t.Errorf("unlinked card = %+v", unlinked)
	}
}

func TestExtractNameFallsBackToCardText(t *testing.T) {
	card := cardFromHTML(t, `<div data-testid="product-card">
		<a href="/category/svet/sale">Sale</a>
		<span>NEW</span>
		<span>Купить</span>
		<span>В наличии</span>
		<span>Размеры (ДхШхВ), см</span>
		<span>50x30x20 и ещё текст</span>
		<span>Цена 13 990 РУБ.</span>
		<span>Короткое</span>
		<span>Бра Смастен White</span>
		<span>Люстра Ферум Orng</span>
	</div>`)

	raw := newTestExtractor().Extract(card)
	// Both survivors have 17 runes; the first one seen wins.
	if raw.Name != "Бра Смастен White" {
		t.Errorf("name = %q", raw.Name)
	}
	if raw.Price != "" {
		t.Errorf("price should be absent, got %q", raw.Price)
	}
	if raw.URL != "https://www.divan.ru/category/svet/sale" {
		t.Errorf("url = %q", raw.URL)
	}
}

func TestExtractPicksLongestCandidate(t *testing.T) {
	card := cardFromHTML(t, `<div data-testid="product-card">
		<p>Настольная лампа</p>
		<p>Настольная лампа Эклипс с абажуром</p>
		<p>Лампа Эклипс</p>
	</div>`)

	raw := newTestExtractor().Extract(card)
	if raw.Name != "Настольная лампа Эклипс с абажуром" {
		t.Errorf("name = %q", raw.Name)
	}
}

func TestExtractUnknownWhenNothingQualifies(t *testing.T) {
	card := cardFromHTML(t, `<div data-testid="product-card">
		<span>Купить</span><span>NEW</span><span>4 990 руб.</span><span>Торшер</span>
	</div>`)

	raw := newTestExtractor().Extract(card)
	if raw.Name != types.UnknownName {
		t.Errorf("name = %q, want %q", raw.Name, types.UnknownName)
	}
	if raw.HasURL() {
		t.Errorf("url should be absent, got %q", raw.URL)
	}
}

func TestExtractEmptyHrefIsAbsent(t *testing.T) {
	card := cardFromHTML(t, `<div data-testid="product-card"><a href="">Подвесной светильник Ферум</a></div>`)

	raw := newTestExtractor().Extract(card)
	if raw.HasURL() {
		t.Errorf("empty href should be treated as absent, got %q", raw.URL)
	}
	if raw.Name != "Подвесной светильник Ферум" {
		t.Errorf("name = %q", raw.Name)
	}
}

func TestExtractDegradesOnQueryErrors(t *testing.T) {
	card := &brokenCard{texts: []string{"  Торшер Ральф Beige  ", "13 990 руб."}}

	raw := newTestExtractor().Extract(card)
	if raw.HasPrice() || raw.HasURL() {
		t.Errorf("failed fields should be absent, got %+v", raw)
	}
	if raw.Name != "Торшер Ральф Beige" {
		t.Errorf("name = %q", raw.Name)
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"torsher ralf beige": "Torsher Ralf Beige",
		"ABC def":            "Abc Def",
		"lampa 2x":           "Lampa 2X",
		"торшер ральф":       "Торшер Ральф",
		"":                   "",
	}
	for in, want := range tests {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
