// Package recommend builds a listener's recommendation list from their
// streaming history, catalog discovery, registered bands and similar artists.
package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/scoring"
)

// ErrListeningHistory wraps failures of the mandatory listening-history fetch.
var ErrListeningHistory = errors.New("fetching listening history")

// Query templates; {genre} expands to the genre batch.
const (
	UndergroundTemplate = "tag:hipster {genre}"
	NewReleaseTemplate  = "tag:new {genre}"
)

// Catalog provides the listener's history.
type Catalog interface {
	TopArtists(ctx context.Context, token string) ([]models.Artist, error)
	FollowedArtists(ctx context.Context, token string) ([]models.Artist, error)
	RecentlyPlayed(ctx context.Context, token string) ([]models.PlayedTrack, error)
}

// Discovery finds catalog and registered candidates.
type Discovery interface {
	FindArtistsByQuery(ctx context.Context, token string, genres []string, queryTemplate string, limit int, isNewRelease bool) ([]models.BandModel, error)
	GetArtistDetailsInBatches(ctx context.Context, token string, ids []string) ([]models.Artist, error)
	GetRegisteredBandsAsModels(ctx context.Context, genres []string, location string) []models.BandModel
}

// LocationSource finds bands from a place.
type LocationSource interface {
	BandsByLocation(ctx context.Context, location string, genres []string) ([]models.BandModel, error)
}

// Enricher adds listener data and similar artists.
type Enricher interface {
	EnrichBands(ctx context.Context, bands []models.BandModel) []models.BandModel
	SimilarArtists(ctx context.Context, seed string, limit int, exclude map[string]struct{}) ([]models.BandModel, error)
}

// Scorer scores a candidate group.
type Scorer interface {
	Score(bands []models.BandModel, c scoring.Context) []models.BandModel
}

// Diversifier re-ranks the scored union.
type Diversifier interface {
	Apply(ctx context.Context, bands []models.BandModel, cooldown scoring.Cooldown, limit int) []models.BandModel
}

// Cooldown is the process-wide record of recent recommendations.
type Cooldown interface {
	scoring.Cooldown
	Record(names []string, at time.Time)
	Purge(window time.Duration, now time.Time) int
}

// Config tunes the orchestration.
type Config struct {
	Limit                int
	CooldownWindow       time.Duration
	SimilarSeeds         int // top artists expanded through similar artists
	SimilarPerSeed       int
	RegisteredSeeds      int // registered bands expanded through similar artists
	SimilarPerRegistered int
	MaxGenreSignal       int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Limit:                50,
		CooldownWindow:       7 * 24 * time.Hour,
		SimilarSeeds:         5,
		SimilarPerSeed:       5,
		RegisteredSeeds:      5,
		SimilarPerRegistered: 3,
		MaxGenreSignal:       12,
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Catalog     Catalog
	Discovery   Discovery
	Location    LocationSource
	Enricher    Enricher
	Scorer      Scorer
	Diversifier Diversifier
	Cooldown    Cooldown
}

// Service orchestrates recommendation runs. It is safe for concurrent use.
type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

// NewService creates a Service. Zero config fields take their defaults.
func NewService(deps Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.CooldownWindow <= 0 {
		cfg.CooldownWindow = def.CooldownWindow
	}
	if cfg.SimilarSeeds <= 0 {
		cfg.SimilarSeeds = def.SimilarSeeds
	}
	if cfg.SimilarPerSeed <= 0 {
		cfg.SimilarPerSeed = def.SimilarPerSeed
	}
	if cfg.RegisteredSeeds <= 0 {
		cfg.RegisteredSeeds = def.RegisteredSeeds
	}
	if cfg.SimilarPerRegistered <= 0 {
		cfg.SimilarPerRegistered = def.SimilarPerRegistered
	}
	if cfg.MaxGenreSignal <= 0 {
		cfg.MaxGenreSignal = def.MaxGenreSignal
	}
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}
