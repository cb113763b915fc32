package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the divan scraper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"      yaml:"site"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Extract   ExtractConfig   `mapstructure:"extract"   yaml:"extract"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// SiteConfig describes the crawl target.
type SiteConfig struct {
	Origin         string   `mapstructure:"origin"          yaml:"origin"`
	StartURLs      []string `mapstructure:"start_urls"      yaml:"start_urls"`
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	Category       string   `mapstructure:"category"        yaml:"category"`
}

// SelectorsConfig picks the markup backend and the card structure for it.
type SelectorsConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"` // css, xpath
	CSS     CardQueries `mapstructure:"css"     yaml:"css"`
	XPath   CardQueries `mapstructure:"xpath"   yaml:"xpath"`
}

// CardQueries holds the queries for one backend.
type CardQueries struct {
	Card  string `mapstructure:"card"  yaml:"card"`
	Price string `mapstructure:"price" yaml:"price"`
	Link  string `mapstructure:"link"  yaml:"link"`
}

// Active returns the queries for the configured backend.
func (s SelectorsConfig) Active() CardQueries {
	if s.Backend == "xpath" {
		return s.XPath
	}
	return s.CSS
}

// ExtractConfig tunes the card-text name fallback.
type ExtractConfig struct {
	MinNameLength  int      `mapstructure:"min_name_length" yaml:"min_name_length"`
	ExcludedTexts  []string `mapstructure:"excluded_texts"  yaml:"excluded_texts"`
	CurrencyMarker string   `mapstructure:"currency_marker" yaml:"currency_marker"`
}

// PipelineConfig controls record admission.
type PipelineConfig struct {
	MinPrice int64 `mapstructure:"min_price" yaml:"min_price"`
}

// FetcherConfig controls page fetching.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http, browser, file
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
	WaitSelector    string        `mapstructure:"wait_selector"     yaml:"wait_selector"`
}

// StorageConfig controls the output table and its optional mirrors.
type StorageConfig struct {
	OutputPath       string      `mapstructure:"output_path"        yaml:"output_path"`
	VerifyAfterWrite bool        `mapstructure:"verify_after_write" yaml:"verify_after_write"`
	Mongo            MongoConfig `mapstructure:"mongo"              yaml:"mongo"`
	Redis            RedisConfig `mapstructure:"redis"              yaml:"redis"`
}

// MongoConfig configures the MongoDB mirror.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// RedisConfig configures the Redis mirror.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"`
	DB      int    `mapstructure:"db"      yaml:"db"`
	Key     string `mapstructure:"key"     yaml:"key"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config for the divan.ru lighting category.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Origin:         "https://www.divan.ru",
			StartURLs:      []string{"https://www.divan.ru/category/svet"},
			AllowedDomains: []string{"divan.ru"},
			Category:       "Источники освещения",
		},
		Selectors: SelectorsConfig{
			Backend: "css",
			CSS: CardQueries{
				Card:  `div[data-testid="product-card"]`,
				Price: `[data-testid="price"]`,
				Link:  "a",
			},
			XPath: CardQueries{
				Card:  `//div[@data-testid="product-card"]`,
				Price: `.//*[@data-testid="price"]`,
				Link:  ".//a",
			},
		},
		Extract: ExtractConfig{
			MinNameLength: 10,
			ExcludedTexts: []string{
				"Купить",
				"NEW",
				"В наличии",
				"Размеры (ДхШхВ)",
				"Размеры (ДхШхВ), см",
			},
			CurrencyMarker: "руб",
		},
		Pipeline: PipelineConfig{
			MinPrice: 1000,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			WaitSelector: `div[data-testid="product-card"]`,
		},
		Storage: StorageConfig{
			OutputPath: "data/divan_lighting_products.csv",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "divan",
				Collection: "products",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "divan:products",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
