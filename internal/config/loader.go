package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("DIVAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("divan")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".divan"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless one was asked for explicitly.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars can override them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.origin", cfg.Site.Origin)
	v.SetDefault("site.start_urls", cfg.Site.StartURLs)
	v.SetDefault("site.allowed_domains", cfg.Site.AllowedDomains)
	v.SetDefault("site.category", cfg.Site.Category)

	v.SetDefault("selectors.backend", cfg.Selectors.Backend)
	v.SetDefault("selectors.css.card", cfg.Selectors.CSS.Card)
	v.SetDefault("selectors.css.price", cfg.Selectors.CSS.Price)
	v.SetDefault("selectors.css.link", cfg.Selectors.CSS.Link)
	v.SetDefault("selectors.xpath.card", cfg.Selectors.XPath.Card)
	v.SetDefault("selectors.xpath.price", cfg.Selectors.XPath.Price)
	v.SetDefault("selectors.xpath.link", cfg.Selectors.XPath.Link)

	v.SetDefault("extract.min_name_length", cfg.Extract.MinNameLength)
	v.SetDefault("extract.excluded_texts", cfg.Extract.ExcludedTexts)
	v.SetDefault("extract.currency_marker", cfg.Extract.CurrencyMarker)

	v.SetDefault("pipeline.min_price", cfg.Pipeline.MinPrice)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)
	v.SetDefault("fetcher.wait_selector", cfg.Fetcher.WaitSelector)

	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.verify_after_write", cfg.Storage.VerifyAfterWrite)
	v.SetDefault("storage.mongo.enabled", cfg.Storage.Mongo.Enabled)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)
	v.SetDefault("storage.redis.enabled", cfg.Storage.Redis.Enabled)
	v.SetDefault("storage.redis.addr", cfg.Storage.Redis.Addr)
	v.SetDefault("storage.redis.db", cfg.Storage.Redis.DB)
	v.SetDefault("storage.redis.key", cfg.Storage.Redis.Key)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
