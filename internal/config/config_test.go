package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/band-recommender/internal/cooldown"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LASTFM_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/bands")
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 50, cfg.Recommend.Limit)
	assert.Equal(t, 7, cfg.Recommend.CooldownDays)
	assert.Equal(t, 3, cfg.Recommend.ThrottlePermits)
	assert.Equal(t, 1.0, cfg.MusicBrainz.RequestsPerSecond)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("RECOMMEND_LIMIT", "20")
	t.Setenv("RECOMMEND_COOLDOWN_DAYS", "3")
	t.Setenv("LASTFM_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MUSICBRAINZ_USER_AGENT", "test-agent/1.0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Recommend.Limit)
	assert.Equal(t, 3*24*time.Hour, cfg.CooldownWindow())
	assert.Equal(t, 5*time.Second, cfg.LastFM.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "test-agent/1.0", cfg.MusicBrainz.UserAgent)
	assert.Equal(t, "test-key", cfg.LastFM.APIKey)
	// untouched defaults survive
	assert.Equal(t, 5, cfg.Recommend.EnrichConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":7000"
  public_base_url: "https://bands.example.com"
cache:
  backend: redis
  redis_url: "redis://localhost:6379/0"
recommend:
  limit: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECOMMEND_LIMIT", "40")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "https://bands.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 40, cfg.Recommend.Limit, "environment wins over the file")
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("LASTFM_API_KEY", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/bands")
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.LastFM.APIKey = "key"
		cfg.Database.URL = "postgres://localhost/bands"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: ErrMissingDatabaseURL},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: ErrInvalidCacheBackend},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Backend = CacheRedis }, wantErr: ErrMissingRedisURL},
		{name: "non-positive limit", mutate: func(c *Config) { c.Recommend.Limit = 0 }, wantErr: errAny},
		{name: "zero cooldown days", mutate: func(c *Config) { c.Recommend.CooldownDays = 0 }, wantErr: errAny},
		{name: "negative cooldown days", mutate: func(c *Config) { c.Recommend.CooldownDays = -2 }, wantErr: errAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, errAny):
				assert.Error(t, err)
			default:
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

var errAny = errors.New("any error")

func TestCooldownWindow(t *testing.T) {
	cfg := &Config{}
	cfg.Recommend.CooldownDays = 3
	assert.Equal(t, 3*24*time.Hour, cfg.CooldownWindow())

	cfg.Recommend.CooldownDays = 0
	assert.Equal(t, cooldown.DefaultWindow, cfg.CooldownWindow())
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "database.url", envTransformFunc("DATABASE_URL"))
	assert.Equal(t, "recommend.throttle_permits", envTransformFunc("THROTTLE_PERMITS"))
	assert.Equal(t, "", envTransformFunc("PATH"))
}
