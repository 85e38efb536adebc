package config

import (
	"errors"
	"strings"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/cache"
	"github.com/Sternrassler/playlist-overlap/pkg/client"
	"github.com/Sternrassler/playlist-overlap/pkg/compare"
	"github.com/Sternrassler/playlist-overlap/pkg/logging"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
	"github.com/Sternrassler/playlist-overlap/pkg/ratelimit"
)

// Default values.
const (
	DefaultBaseURL    = "https://api.spotify.com"
	DefaultUserAgent  = "playlist-overlap/1.0 (+https://github.com/Sternrassler/playlist-overlap)"
	DefaultServerAddr = ":8080"

	// maxPageSize is the largest page the catalog serves.
	maxPageSize = 100
)

// Config is the application configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Scope    ScopeConfig    `yaml:"scope"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// CatalogConfig configures the catalog client.
type CatalogConfig struct {
	BaseURL           string        `yaml:"base_url" env:"CATALOG_BASE_URL"`
	UserAgent         string        `yaml:"user_agent" env:"CATALOG_USER_AGENT"`
	Token             string        `yaml:"token" env:"CATALOG_TOKEN"`
	RequestsPerSecond int           `yaml:"requests_per_second" env:"CATALOG_RPS"`
	Burst             int           `yaml:"burst" env:"CATALOG_BURST"`
	Timeout           time.Duration `yaml:"timeout" env:"CATALOG_TIMEOUT"`
}

// FetchConfig configures pagination and resource fan-out.
type FetchConfig struct {
	PlaylistPageSize    int           `yaml:"playlist_page_size" env:"FETCH_PLAYLIST_PAGE_SIZE"`
	ListingPageSize     int           `yaml:"listing_page_size" env:"FETCH_LISTING_PAGE_SIZE"`
	MaxConcurrency      int           `yaml:"max_concurrency" env:"FETCH_MAX_CONCURRENCY"`
	MaxThrottleRetries  int           `yaml:"max_throttle_retries" env:"FETCH_MAX_THROTTLE_RETRIES"`
	InitialBackoff      time.Duration `yaml:"initial_backoff" env:"FETCH_INITIAL_BACKOFF"`
	MaxBackoff          time.Duration `yaml:"max_backoff" env:"FETCH_MAX_BACKOFF"`
	PageTimeout         time.Duration `yaml:"page_timeout" env:"FETCH_PAGE_TIMEOUT"`
	ResourceConcurrency int           `yaml:"resource_concurrency" env:"FETCH_RESOURCE_CONCURRENCY"`
}

// RedisConfig configures the shared throttle state and the collection cache.
// An empty Addr runs without Redis.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// PostgresConfig configures the scope store. An empty DSN uses an
// in-memory store.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// ScopeConfig seeds the in-memory scope store used without Postgres.
type ScopeConfig struct {
	// Grants maps a caller id to the scopes it has granted.
	Grants map[string][]string `yaml:"grants"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr" env:"SERVER_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	fetch := pagination.DefaultConfig()
	svc := compare.DefaultConfig()

	return &Config{
		Catalog: CatalogConfig{
			BaseURL:           DefaultBaseURL,
			UserAgent:         DefaultUserAgent,
			RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
			Burst:             ratelimit.DefaultRequestsPerSecond,
			Timeout:           15 * time.Second,
		},
		Fetch: FetchConfig{
			PlaylistPageSize:    svc.PlaylistPageSize,
			ListingPageSize:     svc.ListingPageSize,
			MaxConcurrency:      fetch.MaxConcurrency,
			MaxThrottleRetries:  fetch.MaxThrottleRetries,
			InitialBackoff:      fetch.InitialBackoff,
			MaxBackoff:          fetch.MaxBackoff,
			PageTimeout:         fetch.Timeout,
			ResourceConcurrency: svc.ResourceConcurrency,
		},
		Redis: RedisConfig{
			CacheTTL: cache.DefaultTTL,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Server: ServerConfig{
			Addr:         DefaultServerAddr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Catalog.BaseURL) == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if strings.TrimSpace(c.Catalog.UserAgent) == "" {
		errs = append(errs, ErrMissingUserAgent)
	}
	if c.Catalog.RequestsPerSecond <= 0 || c.Catalog.Burst <= 0 {
		errs = append(errs, ErrInvalidRequestRate)
	}
	if c.Catalog.Timeout <= 0 || c.Fetch.PageTimeout <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if !validPageSize(c.Fetch.PlaylistPageSize) || !validPageSize(c.Fetch.ListingPageSize) {
		errs = append(errs, ErrInvalidPageSize)
	}
	if c.Fetch.MaxConcurrency <= 0 || c.Fetch.ResourceConcurrency <= 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	if c.Fetch.InitialBackoff <= 0 || c.Fetch.InitialBackoff > c.Fetch.MaxBackoff {
		errs = append(errs, ErrInvalidBackoff)
	}
	switch logging.LogLevel(strings.ToLower(c.Logging.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		errs = append(errs, ErrInvalidLogLevel)
	}

	return errors.Join(errs...)
}

func validPageSize(n int) bool {
	return n > 0 && n <= maxPageSize
}

// ClientConfig returns the catalog client configuration. The Redis client
// is set by the caller.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Catalog.BaseURL, c.Catalog.UserAgent)
	cfg.Timeout = c.Catalog.Timeout
	cfg.RequestsPerSecond = c.Catalog.RequestsPerSecond
	cfg.Burst = c.Catalog.Burst
	if c.Catalog.Token != "" {
		cfg.Tokens = client.StaticToken(c.Catalog.Token)
	}
	return cfg
}

// FetcherConfig returns the paginated fetcher configuration.
func (c *Config) FetcherConfig() pagination.Config {
	return pagination.Config{
		PageSize:           c.Fetch.PlaylistPageSize,
		MaxConcurrency:     c.Fetch.MaxConcurrency,
		MaxThrottleRetries: c.Fetch.MaxThrottleRetries,
		InitialBackoff:     c.Fetch.InitialBackoff,
		MaxBackoff:         c.Fetch.MaxBackoff,
		Timeout:            c.Fetch.PageTimeout,
	}
}

// ServiceConfig returns the comparison service configuration.
func (c *Config) ServiceConfig() compare.Config {
	return compare.Config{
		PlaylistPageSize:    c.Fetch.PlaylistPageSize,
		ListingPageSize:     c.Fetch.ListingPageSize,
		ResourceConcurrency: c.Fetch.ResourceConcurrency,
	}
}

// LoggingSetup returns the logger configuration.
func (c *Config) LoggingSetup() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Logging.Level))
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
