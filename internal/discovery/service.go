// Package discovery finds candidate artists in the streaming catalog by genre
// batch and resolves the platform's registered bands by genre and location.
package discovery

import (
	"context"
	"time"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/enrich"
	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/spotify"
	"github.com/justestif/band-recommender/internal/throttle"
)

// Search tuning.
const (
	// GenreBatchSize is the number of genres combined into one catalog query.
	GenreBatchSize = 3

	// AlbumPageSize is the album search page size for the primary pass.
	AlbumPageSize = 50

	// RecentAlbumPageSize is the album search page size for the new-release pass.
	RecentAlbumPageSize = 30

	// MaxArtistIDs caps the artist IDs collected from one album search.
	MaxArtistIDs = 50

	// DefaultDetailBatchSize is the artist-detail sub-batch size.
	DefaultDetailBatchSize = spotify.MaxArtistsPerRequest

	// UndergroundPopularityThreshold is the highest popularity still
	// considered underground.
	UndergroundPopularityThreshold = 40

	// RecentGenreLimit is how many genres the new-release pass queries.
	RecentGenreLimit = 2

	// RecentWindow is how far back the new-release pass looks.
	RecentWindow = 6 * 30 * 24 * time.Hour
)

// Cache lifetimes.
const (
	SearchTTL       = 2 * time.Hour
	RecentSearchTTL = time.Hour
	DetailsTTL      = 6 * time.Hour
	RegisteredTTL   = 30 * time.Minute
)

// Catalog is the streaming catalog used for search and artist details.
type Catalog interface {
	SearchAlbums(ctx context.Context, token, query string, limit int) ([]models.Album, error)
	Artists(ctx context.Context, token string, ids []string) ([]models.Artist, error)
}

// BandStore looks up registered bands.
type BandStore interface {
	ByGenre(ctx context.Context, genre string) ([]models.RegisteredBand, error)
	ByLocation(ctx context.Context, location string) ([]models.RegisteredBand, error)
	ByGenreAndLocation(ctx context.Context, genre, location string) ([]models.RegisteredBand, error)
	All(ctx context.Context) ([]models.RegisteredBand, error)
}

// Enricher looks up enrichment data for a band name.
type Enricher interface {
	Lookup(ctx context.Context, name string) (enrich.Info, error)
}

// Service runs catalog discovery and registered-band resolution.
type Service struct {
	catalog         Catalog
	bands           BandStore
	enricher        Enricher
	cache           *cache.Cache
	throttler       *throttle.Throttler
	imageBaseURL    string
	detailBatchSize int
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithThrottler bounds concurrent catalog calls.
func WithThrottler(t *throttle.Throttler) Option {
	return func(s *Service) {
		if t != nil {
			s.throttler = t
		}
	}
}

// WithImageBaseURL sets the public base URL used for registered band images.
func WithImageBaseURL(url string) Option {
	return func(s *Service) {
		s.imageBaseURL = url
	}
}

// WithDetailBatchSize sets the artist-detail sub-batch size.
func WithDetailBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= spotify.MaxArtistsPerRequest {
			s.detailBatchSize = n
		}
	}
}

// WithClock replaces time.Now for the new-release window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a discovery service.
func NewService(catalog Catalog, bands BandStore, enricher Enricher, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		catalog:         catalog,
		bands:           bands,
		enricher:        enricher,
		cache:           c,
		throttler:       throttle.New("spotify", throttle.DefaultPermits),
		detailBatchSize: DefaultDetailBatchSize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
