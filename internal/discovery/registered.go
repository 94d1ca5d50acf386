package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/enrich"
	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/models"
)

// GetMatchingRegisteredBands returns registered bands for genres and
// location, cached for RegisteredTTL. Lookup failures are logged and yield
// an empty list.
//
// Selection order: genre AND location, then location only, then genre only
// when both are given; genre only or location only when one is given; all
// bands when neither is. An empty selection falls back to all bands.
func (s *Service) GetMatchingRegisteredBands(ctx context.Context, genres []string, location string) []models.RegisteredBand {
	genres = cleanGenres(genres)
	location = strings.TrimSpace(location)

	key := cache.Key("registered-bands", strings.Join(genres, ","), location)
	bands, err := cache.GetOrCreateContext(ctx, s.cache, key, RegisteredTTL, func(ctx context.Context) ([]models.RegisteredBand, error) {
		return s.selectRegistered(ctx, genres, location)
	})
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Strs("genres", genres).
			Str("location", location).
			Msg("registered band lookup failed")
		return []models.RegisteredBand{}
	}
	return bands
}

func (s *Service) selectRegistered(ctx context.Context, genres []string, location string) ([]models.RegisteredBand, error) {
	var (
		bands []models.RegisteredBand
		err   error
	)

	switch {
	case len(genres) > 0 && location != "":
		bands, err = s.unionByGenre(ctx, genres, func(ctx context.Context, g string) ([]models.RegisteredBand, error) {
			return s.bands.ByGenreAndLocation(ctx, g, location)
		})
		if err == nil && len(bands) == 0 {
			bands, err = s.bands.ByLocation(ctx, location)
		}
		if err == nil && len(bands) == 0 {
			bands, err = s.unionByGenre(ctx, genres, s.bands.ByGenre)
		}
	case len(genres) > 0:
		bands, err = s.unionByGenre(ctx, genres, s.bands.ByGenre)
	case location != "":
		bands, err = s.bands.ByLocation(ctx, location)
	}
	if err != nil {
		return nil, err
	}

	if len(bands) == 0 {
		bands, err = s.bands.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing all bands: %w", err)
		}
	}
	return dedupeRegistered(bands), nil
}

func (s *Service) unionByGenre(ctx context.Context, genres []string, lookup func(context.Context, string) ([]models.RegisteredBand, error)) ([]models.RegisteredBand, error) {
	var union []models.RegisteredBand
	for _, g := range genres {
		bands, err := lookup(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("bands for genre %q: %w", g, err)
		}
		union = append(union, bands...)
	}
	return dedupeRegistered(union), nil
}

func dedupeRegistered(bands []models.RegisteredBand) []models.RegisteredBand {
	seen := make(map[uuid.UUID]struct{}, len(bands))
	out := make([]models.RegisteredBand, 0, len(bands))
	for _, b := range bands {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

func cleanGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// ImageURL is the platform endpoint serving a registered band's cover image.
func (s *Service) ImageURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/api/bands/%s/image", strings.TrimRight(s.imageBaseURL, "/"), id)
}

// GetRegisteredBandsAsModels converts matching registered bands into
// candidates and enriches each one concurrently. A band whose enrichment
// fails is kept as is.
func (s *Service) GetRegisteredBandsAsModels(ctx context.Context, genres []string, location string) []models.BandModel {
	registered := s.GetMatchingRegisteredBands(ctx, genres, location)
	bands := make([]models.BandModel, len(registered))

	var wg sync.WaitGroup
	for i, rb := range registered {
		bands[i] = models.BandModel{
			Name:         rb.Name,
			Genres:       rb.GenreList(),
			Location:     rb.Location(),
			ImageURL:     s.ImageURL(rb.ID),
			IsRegistered: true,
			RegisteredID: rb.ID.String(),
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := s.enricher.Lookup(ctx, bands[i].Name)
			if err != nil {
				logging.Ctx(ctx).Warn().
					Err(err).
					Str("band", bands[i].Name).
					Msg("registered band enrichment failed")
				return
			}
			bands[i] = enrich.Apply(bands[i], info)
		}(i)
	}
	wg.Wait()

	return bands
}
