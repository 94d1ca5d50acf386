// Package lastfm provides Last.fm API integration for artist statistics,
// tags and similar-artist lookups.
package lastfm

import (
	"errors"
	"time"
)

// DefaultTimeout bounds a single Last.fm HTTP request.
const DefaultTimeout = 10 * time.Second

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// Validate returns ErrMissingAPIKey if no API key is set.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
