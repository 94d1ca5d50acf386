package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/metrics"
	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/scoring"
)

// history is the listener's streaming history.
type history struct {
	top      []models.Artist
	followed []models.Artist
	recent   []models.PlayedTrack
}

// known returns the case-insensitive names the listener already knows.
func (h history) known() map[string]struct{} {
	set := make(map[string]struct{}, len(h.top)+len(h.followed))
	for _, list := range [][]models.Artist{h.top, h.followed} {
		for _, a := range list {
			if k := models.NameKey(a.Name); k != "" {
				set[k] = struct{}{}
			}
		}
	}
	return set
}

// GetRecommendations builds at most Limit bands for the listener behind
// token. genres and location are the caller's preferences; genres are only
// used when the listener's history carries no genre signal.
//
// The listening-history fetch is mandatory and its failure is returned
// wrapped in ErrListeningHistory. Every later step degrades to an empty
// contribution on failure.
func (s *Service) GetRecommendations(ctx context.Context, token string, genres []string, location string) ([]models.BandModel, error) {
	start := time.Now()
	log := logging.Ctx(ctx)
	location = strings.TrimSpace(location)

	h, err := s.fetchHistory(ctx, token)
	if err != nil {
		return nil, err
	}
	known := h.known()

	signal := s.genreSignal(ctx, token, h, genres)
	log.Debug().Strs("genres", signal).Int("known_artists", len(known)).Msg("genre signal built")

	// Candidate discovery. Each source degrades independently.
	found := runSteps(ctx,
		step{name: "underground", run: func(ctx context.Context) ([]models.BandModel, error) {
			return s.Discovery.FindArtistsByQuery(ctx, token, signal, UndergroundTemplate, s.cfg.Limit, false)
		}},
		step{name: "new-release", run: func(ctx context.Context) ([]models.BandModel, error) {
			return s.Discovery.FindArtistsByQuery(ctx, token, signal, NewReleaseTemplate, s.cfg.Limit/2, true)
		}},
		step{name: "location", run: func(ctx context.Context) ([]models.BandModel, error) {
			if location == "" || s.Location == nil {
				return nil, nil
			}
			return s.Location.BandsByLocation(ctx, location, signal)
		}},
		step{name: "registered", run: func(ctx context.Context) ([]models.BandModel, error) {
			return s.Discovery.GetRegisteredBandsAsModels(ctx, signal, location), nil
		}},
	)
	underground := models.Dedupe(collect(log, found[:2]))
	local := collect(log, found[2:3])
	registered := collect(log, found[3:])

	// Enrichment; per-band failures keep the band unchanged.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		local = s.Enricher.EnrichBands(ctx, local)
	}()
	go func() {
		defer wg.Done()
		underground = s.Enricher.EnrichBands(ctx, underground)
	}()
	wg.Wait()

	similar := s.expandSimilar(ctx, h.top, registered, known, local, registered, underground)

	var scored []models.BandModel
	scored = append(scored, s.Scorer.Score(local, scoring.Context{Genres: signal, Location: location})...)
	scored = append(scored, s.Scorer.Score(registered, scoring.Context{Genres: signal, Location: location, IsRegistered: true})...)
	scored = append(scored, s.Scorer.Score(underground, scoring.Context{Genres: signal, Location: location, IsFromSearch: true})...)
	scored = append(scored, s.Scorer.Score(similar, scoring.Context{Genres: signal, Location: location})...)

	now := s.now()
	purged := s.Cooldown.Purge(s.cfg.CooldownWindow, now)

	diversified := s.Diversifier.Apply(ctx, scored, s.Cooldown, s.cfg.Limit)

	result := make([]models.BandModel, 0, len(diversified))
	for _, b := range diversified {
		if _, ok := known[b.Key()]; ok {
			continue
		}
		result = append(result, b)
	}

	names := make([]string, len(result))
	for i, b := range result {
		names[i] = b.Name
	}
	s.Cooldown.Record(names, now)

	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	metrics.RecommendationSize.Observe(float64(len(result)))
	log.Info().
		Int("local", len(local)).
		Int("registered", len(registered)).
		Int("underground", len(underground)).
		Int("similar", len(similar)).
		Int("cooldown_purged", purged).
		Int("returned", len(result)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendations built")

	return result, nil
}

// fetchHistory loads top, followed and recently played concurrently. Any
// failure fails the whole fetch and every failure is reported.
func (s *Service) fetchHistory(ctx context.Context, token string) (history, error) {
	var (
		h                              history
		topErr, followedErr, recentErr error
	)

	// A plain Group waits for every call; one failure does not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		h.top, topErr = s.Catalog.TopArtists(ctx, token)
		return topErr
	})
	g.Go(func() error {
		h.followed, followedErr = s.Catalog.FollowedArtists(ctx, token)
		return followedErr
	})
	g.Go(func() error {
		h.recent, recentErr = s.Catalog.RecentlyPlayed(ctx, token)
		return recentErr
	})

	if err := g.Wait(); err != nil {
		return history{}, fmt.Errorf("%w: %w", ErrListeningHistory, errors.Join(topErr, followedErr, recentErr))
	}
	return h, nil
}

// genreSignal prefers genres of recently played artists, then genres of
// followed artists, then the caller's genres.
func (s *Service) genreSignal(ctx context.Context, token string, h history, fallback []string) []string {
	var recentGenres []string
	if ids := recentArtistIDs(h.recent); len(ids) > 0 {
		artists, err := s.Discovery.GetArtistDetailsInBatches(ctx, token, ids)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("artists", len(ids)).Msg("recent artist details failed, skipping recent genres")
			metrics.StepFailures.WithLabelValues("recent-genres").Inc()
		}
		for _, a := range artists {
			recentGenres = append(recentGenres, a.Genres...)
		}
	}

	var followedGenres []string
	for _, a := range h.followed {
		followedGenres = append(followedGenres, a.Genres...)
	}

	signal := models.MergeGenres(recentGenres, followedGenres)
	if len(signal) == 0 {
		signal = models.MergeGenres(fallback, nil)
	}
	if len(signal) > s.cfg.MaxGenreSignal {
		signal = signal[:s.cfg.MaxGenreSignal]
	}
	return signal
}

// recentArtistIDs returns the distinct artist IDs of played tracks in play order.
func recentArtistIDs(tracks []models.PlayedTrack) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, t := range tracks {
		for _, id := range t.ArtistIDs {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// expandSimilar fetches artists similar to the listener's top artists and
// to the leading registered bands. Names in known or in any collected
// group are excluded.
func (s *Service) expandSimilar(ctx context.Context, top []models.Artist, registered []models.BandModel, known map[string]struct{}, collected ...[]models.BandModel) []models.BandModel {
	exclude := models.NameSet(collected...)
	for k := range known {
		exclude[k] = struct{}{}
	}

	var steps []step
	for _, a := range top[:min(len(top), s.cfg.SimilarSeeds)] {
		seed := a.Name
		steps = append(steps, step{name: "similar-artist:" + seed, run: func(ctx context.Context) ([]models.BandModel, error) {
			bands, err := s.Enricher.SimilarArtists(ctx, seed, s.cfg.SimilarPerSeed, exclude)
			for i := range bands {
				bands[i].SimilarToArtistName = seed
			}
			return bands, err
		}})
	}
	for _, b := range registered[:min(len(registered), s.cfg.RegisteredSeeds)] {
		seed := b.Name
		steps = append(steps, step{name: "similar-registered:" + seed, run: func(ctx context.Context) ([]models.BandModel, error) {
			bands, err := s.Enricher.SimilarArtists(ctx, seed, s.cfg.SimilarPerRegistered, exclude)
			for i := range bands {
				bands[i].SimilarToRegisteredBand = seed
			}
			return bands, err
		}})
	}
	if len(steps) == 0 {
		return nil
	}

	return models.Dedupe(collect(logging.Ctx(ctx), runSteps(ctx, steps...)))
}
