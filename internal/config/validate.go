package config

import (
	"fmt"
	"net/url"
	"strings"
)

// MinPriceFloor is the lowest admission threshold a session may run with.
const MinPriceFloor = 1000

// Validate checks the configuration for invalid values. Start URLs are
// only required to be present; malformed ones are skipped at crawl time.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.Origin); err != nil {
		return fmt.Errorf("site.origin: %w", err)
	}
	if len(cfg.Site.StartURLs) == 0 {
		return fmt.Errorf("site.start_urls must not be empty")
	}
	if strings.TrimSpace(cfg.Site.Category) == "" {
		return fmt.Errorf("site.category must not be empty")
	}

	if cfg.Selectors.Backend != "css" && cfg.Selectors.Backend != "xpath" {
		return fmt.Errorf("selectors.backend must be 'css' or 'xpath', got %q", cfg.Selectors.Backend)
	}
	q := cfg.Selectors.Active()
	if q.Card == "" {
		return fmt.Errorf("selectors.%s.card must not be empty", cfg.Selectors.Backend)
	}
	if q.Price == "" || q.Link == "" {
		return fmt.Errorf("selectors.%s.price and selectors.%s.link must not be empty", cfg.Selectors.Backend, cfg.Selectors.Backend)
	}

	if cfg.Extract.MinNameLength < 0 {
		return fmt.Errorf("extract.min_name_length must be >= 0, got %d", cfg.Extract.MinNameLength)
	}
	if cfg.Pipeline.MinPrice < MinPriceFloor {
		return fmt.Errorf("pipeline.min_price must be >= %d, got %d", MinPriceFloor, cfg.Pipeline.MinPrice)
	}

	switch cfg.Fetcher.Type {
	case "http", "browser", "file":
	default:
		return fmt.Errorf("fetcher.type must be 'http', 'browser' or 'file', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if strings.TrimSpace(cfg.Storage.OutputPath) == "" {
		return fmt.Errorf("storage.output_path must not be empty")
	}
	if cfg.Storage.Mongo.Enabled && (cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "") {
		return fmt.Errorf("storage.mongo requires uri, database and collection when enabled")
	}
	if cfg.Storage.Redis.Enabled && (cfg.Storage.Redis.Addr == "" || cfg.Storage.Redis.Key == "") {
		return fmt.Errorf("storage.redis requires addr and key when enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateSeed accepts crawlable URLs and file:// URLs for offline runs.
func ValidateSeed(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "file" {
		if u.Path == "" {
			return fmt.Errorf("file URL must have a path")
		}
		return nil
	}
	return ValidateURL(rawURL)
}

// DomainAllowed reports whether host is one of the allowed domains or a
// subdomain of one. An empty list allows every host.
func DomainAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
