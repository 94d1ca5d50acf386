// Package enrich augments band candidates with Last.fm listener statistics,
// tags and similar-artist data.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/lastfm"
	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/throttle"
)

// Default concurrency for batch processing.
const DefaultConcurrency = 5

// InfoTTL is how long a band's enrichment data is cached.
const InfoTTL = 24 * time.Hour

// maxGenresFromTags bounds the genres taken from a band's top tags.
const maxGenresFromTags = 5

// Info is the enrichment data cached per band name.
type Info struct {
	Name      string   `json:"name"`
	Listeners int64    `json:"listeners"`
	PlayCount int64    `json:"playCount"`
	Genres    []string `json:"genres"`
	ImageURL  string   `json:"imageUrl"`
	Similar   []string `json:"similar"`
}

// ArtistSource abstracts the Last.fm client for testing.
type ArtistSource interface {
	ArtistInfo(ctx context.Context, artist string) (lastfm.ArtistInfo, error)
	SimilarArtists(ctx context.Context, artist string, limit int) ([]lastfm.SimilarArtist, error)
}

// Service enriches bands from an ArtistSource through a shared cache.
type Service struct {
	source      ArtistSource
	cache       *cache.Cache
	throttler   *throttle.Throttler
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of concurrent enrichment operations.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithThrottler bounds concurrent calls into the source.
func WithThrottler(t *throttle.Throttler) Option {
	return func(s *Service) {
		if t != nil {
			s.throttler = t
		}
	}
}

// NewService creates a new enrichment service.
func NewService(source ArtistSource, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		source:      source,
		cache:       c,
		throttler:   throttle.New("lastfm", throttle.DefaultPermits),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns enrichment data for name, fetching and caching it for
// InfoTTL on a miss. Failures are not cached.
func (s *Service) Lookup(ctx context.Context, name string) (Info, error) {
	key := cache.Key("band", name)
	return cache.GetOrCreateContext(ctx, s.cache, key, InfoTTL, func(ctx context.Context) (Info, error) {
		info, err := throttle.Do(ctx, s.throttler, func(ctx context.Context) (lastfm.ArtistInfo, error) {
			return s.source.ArtistInfo(ctx, name)
		})
		if err != nil {
			return Info{}, err
		}
		return infoFrom(info), nil
	})
}

func infoFrom(a lastfm.ArtistInfo) Info {
	genres := a.Tags
	if len(genres) > maxGenresFromTags {
		genres = genres[:maxGenresFromTags]
	}
	return Info{
		Name:      a.Name,
		Listeners: a.Listeners,
		PlayCount: a.PlayCount,
		Genres:    append([]string(nil), genres...),
		ImageURL:  a.ImageURL,
		Similar:   append([]string(nil), a.Similar...),
	}
}

// Apply merges info into band. Known values on the band win except genres,
// which are unioned case-insensitively.
func Apply(band models.BandModel, info Info) models.BandModel {
	if info.Listeners > 0 {
		band.Listeners = info.Listeners
	}
	if info.PlayCount > 0 {
		band.PlayCount = info.PlayCount
	}
	if band.ImageURL == "" {
		band.ImageURL = info.ImageURL
	}
	band.Genres = models.MergeGenres(band.Genres, info.Genres)
	if len(band.Similar) == 0 && len(info.Similar) > 0 {
		band.Similar = append([]string(nil), info.Similar...)
	}
	return band
}

// EnrichBands enriches bands concurrently and returns them in input order.
// A band whose lookup fails is returned unchanged.
func (s *Service) EnrichBands(ctx context.Context, bands []models.BandModel) []models.BandModel {
	if len(bands) == 0 {
		return []models.BandModel{}
	}

	results := make([]models.BandModel, len(bands))
	copy(results, bands)

	type workItem struct {
		index int
		band  models.BandModel
	}
	workCh := make(chan workItem, len(bands))
	for i, b := range bands {
		workCh <- workItem{index: i, band: b}
	}
	close(workCh)

	var wg sync.WaitGroup
	for i := 0; i < min(s.concurrency, len(bands)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				if ctx.Err() != nil {
					continue
				}

				info, err := s.Lookup(ctx, work.band.Name)
				if err != nil {
					logging.Ctx(ctx).Warn().
						Err(err).
						Str("band", work.band.Name).
						Msg("enrichment failed, keeping band unenriched")
					continue
				}
				results[work.index] = Apply(work.band, info)
			}
		}()
	}

	wg.Wait()
	return results
}

// SimilarArtists returns up to limit enriched candidates similar to seed,
// skipping names in exclude and the seed itself.
func (s *Service) SimilarArtists(ctx context.Context, seed string, limit int, exclude map[string]struct{}) ([]models.BandModel, error) {
	if limit <= 0 {
		return []models.BandModel{}, nil
	}

	// Over-fetch so exclusions do not starve the result.
	similar, err := throttle.Do(ctx, s.throttler, func(ctx context.Context) ([]lastfm.SimilarArtist, error) {
		return s.source.SimilarArtists(ctx, seed, limit*3)
	})
	if err != nil {
		return nil, fmt.Errorf("similar artists for %q: %w", seed, err)
	}

	seedKey := models.NameKey(seed)
	seen := make(map[string]struct{})
	bands := make([]models.BandModel, 0, limit)
	for _, a := range similar {
		key := models.NameKey(a.Name)
		if key == "" || key == seedKey {
			continue
		}
		if _, ok := exclude[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		bands = append(bands, models.BandModel{Name: a.Name})
		if len(bands) == limit {
			break
		}
	}

	return s.EnrichBands(ctx, bands), nil
}
