// Package config loads the service configuration from struct defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/band-recommender/internal/cooldown"
	"github.com/justestif/band-recommender/internal/lastfm"
	"github.com/justestif/band-recommender/internal/musicbrainz"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/band-recommender/config.yaml",
}

var (
	// ErrMissingAPIKey is returned when no Last.fm API key is configured.
	ErrMissingAPIKey = lastfm.ErrMissingAPIKey

	// ErrMissingDatabaseURL is returned when DATABASE_URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrInvalidCacheBackend is returned for a cache backend other than memory or redis.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")

	// ErrMissingRedisURL is returned when the redis backend has no URL.
	ErrMissingRedisURL = errors.New("missing redis URL")
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Database    DatabaseConfig     `koanf:"database"`
	Cache       CacheConfig        `koanf:"cache"`
	LastFM      lastfm.Config      `koanf:"lastfm"`
	MusicBrainz musicbrainz.Config `koanf:"musicbrainz"`
	Recommend   RecommendConfig    `koanf:"recommend"`
	Logging     LoggingConfig      `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// PublicBaseURL prefixes registered band image URLs. Empty yields relative URLs.
	PublicBaseURL   string        `koanf:"public_base_url"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the registered band store.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	Backend  string `koanf:"backend"`
	RedisURL string `koanf:"redis_url"`
	Prefix   string `koanf:"prefix"`
}

// RecommendConfig tunes the recommendation pipeline.
type RecommendConfig struct {
	Limit             int `koanf:"limit"`
	CooldownDays      int `koanf:"cooldown_days"`
	ThrottlePermits   int `koanf:"throttle_permits"`
	EnrichConcurrency int `koanf:"enrich_concurrency"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Prefix:  "bandrec:",
		},
		LastFM: lastfm.Config{
			Timeout: lastfm.DefaultTimeout,
		},
		MusicBrainz: musicbrainz.Config{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 1,
			SearchLimit:       musicbrainz.DefaultSearchLimit,
		},
		Recommend: RecommendConfig{
			Limit:             50,
			CooldownDays:      7,
			ThrottlePermits:   3,
			EnrichConcurrency: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks required keys and enumerations.
func (c *Config) Validate() error {
	if err := c.LastFM.Validate(); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.Cache.Backend)
	}

	if c.Recommend.Limit <= 0 {
		return fmt.Errorf("recommend limit must be positive, got %d", c.Recommend.Limit)
	}
	if c.Recommend.CooldownDays <= 0 {
		return fmt.Errorf("recommend cooldown days must be positive, got %d", c.Recommend.CooldownDays)
	}
	return nil
}

// CooldownWindow converts the configured days into a duration. Non-positive
// days map to cooldown.DefaultWindow.
func (c *Config) CooldownWindow() time.Duration {
	return cooldown.Days(c.Recommend.CooldownDays)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"server_addr":      "server.addr",
	"public_base_url":  "server.public_base_url",
	"shutdown_timeout": "server.shutdown_timeout",

	"database_url": "database.url",

	"cache_backend": "cache.backend",
	"redis_url":     "cache.redis_url",
	"cache_prefix":  "cache.prefix",

	"lastfm_api_key": "lastfm.api_key",
	"lastfm_timeout": "lastfm.timeout",

	"musicbrainz_user_agent": "musicbrainz.user_agent",
	"musicbrainz_base_url":   "musicbrainz.base_url",

	"recommend_limit":         "recommend.limit",
	"recommend_cooldown_days": "recommend.cooldown_days",
	"throttle_permits":        "recommend.throttle_permits",
	"enrich_concurrency":      "recommend.enrich_concurrency",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps environment variable names onto config keys.
// Unknown variables are ignored.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
