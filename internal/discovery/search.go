package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/models"
	"github.com/justestif/band-recommender/internal/throttle"
)

// GenrePlaceholder is replaced by the batch's genre filter in query templates.
const GenrePlaceholder = "{genre}"

// GenreBatches splits genres into batches of GenreBatchSize. An empty list
// yields a single empty batch.
func GenreBatches(genres []string) [][]string {
	if len(genres) == 0 {
		return [][]string{{}}
	}
	batches := make([][]string, 0, (len(genres)+GenreBatchSize-1)/GenreBatchSize)
	for start := 0; start < len(genres); start += GenreBatchSize {
		end := min(start+GenreBatchSize, len(genres))
		batches = append(batches, genres[start:end])
	}
	return batches
}

// ExpandQuery substitutes the batch into template as
// genre:"g1" OR genre:"g2" OR ...
func ExpandQuery(template string, batch []string) string {
	terms := make([]string, 0, len(batch))
	for _, g := range batch {
		if g = strings.TrimSpace(g); g != "" {
			terms = append(terms, fmt.Sprintf(`genre:"%s"`, g))
		}
	}
	q := strings.ReplaceAll(template, GenrePlaceholder, strings.Join(terms, " OR "))
	return strings.Join(strings.Fields(q), " ")
}

// perBatchCap is limit divided across batches, at least 1.
func perBatchCap(limit, batches int) int {
	if batches <= 0 {
		batches = 1
	}
	return max(1, limit/batches)
}

// FindArtistsByQuery searches the catalog one genre batch at a time and
// returns underground artists (popularity at or below
// UndergroundPopularityThreshold), deduplicated by name in batch order.
//
// A failing batch contributes nothing; an error is returned only when every
// batch failed. With isNewRelease set and fewer than limit/2 results, a
// recent-release pass over the first RecentGenreLimit genres adds more.
func (s *Service) FindArtistsByQuery(ctx context.Context, token string, genres []string, queryTemplate string, limit int, isNewRelease bool) ([]models.BandModel, error) {
	log := logging.Ctx(ctx).With().Str("component", "discovery").Logger()

	batches := GenreBatches(genres)
	batchCap := perBatchCap(limit, len(batches))
	tag := models.TagHipster
	if isNewRelease {
		tag = models.TagNew
	}

	results := make([][]models.BandModel, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()

			key := cache.Key("artist-search", queryTemplate, strings.Join(batch, ","), strconv.FormatBool(isNewRelease))
			found, err := cache.GetOrCreateContext(ctx, s.cache, key, SearchTTL, func(ctx context.Context) ([]models.BandModel, error) {
				return s.searchUnderground(ctx, token, ExpandQuery(queryTemplate, batch), AlbumPageSize, []string{tag}, isNewRelease)
			})
			if err != nil {
				log.Warn().Err(err).Strs("genres", batch).Msg("genre batch search failed")
				errs[i] = err
				return
			}
			results[i] = capBands(found, batchCap)
		}(i, batch)
	}
	wg.Wait()

	if err := allFailed(errs); err != nil {
		return nil, fmt.Errorf("searching %d genre batches: %w", len(batches), err)
	}

	var merged []models.BandModel
	for _, r := range results {
		merged = append(merged, r...)
	}
	merged = models.Dedupe(merged)

	if isNewRelease && len(merged) < limit/2 {
		recent := s.findRecentReleases(ctx, token, genres, limit)
		merged = models.Dedupe(append(merged, recent...))
	}

	log.Debug().
		Int("batches", len(batches)).
		Int("found", len(merged)).
		Bool("new_release", isNewRelease).
		Msg("artist search complete")
	return merged, nil
}

// findRecentReleases queries the most recent release window for up to
// RecentGenreLimit genres. Failures are logged and skipped.
func (s *Service) findRecentReleases(ctx context.Context, token string, genres []string, limit int) []models.BandModel {
	genres = genres[:min(len(genres), RecentGenreLimit)]
	recentCap := max(1, limit/4)
	years := yearRange(s.now(), RecentWindow)

	results := make([][]models.BandModel, len(genres))
	var wg sync.WaitGroup
	for i, genre := range genres {
		wg.Add(1)
		go func(i int, genre string) {
			defer wg.Done()

			query := fmt.Sprintf(`tag:new genre:"%s" year:%s`, strings.TrimSpace(genre), years)
			key := cache.Key("artist-search", "recent", genre, years)
			found, err := cache.GetOrCreateContext(ctx, s.cache, key, RecentSearchTTL, func(ctx context.Context) ([]models.BandModel, error) {
				return s.searchUnderground(ctx, token, query, RecentAlbumPageSize, []string{models.TagNew, models.TagRecent}, true)
			})
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("genre", genre).Msg("recent release search failed")
				return
			}
			results[i] = capBands(found, recentCap)
		}(i, genre)
	}
	wg.Wait()

	var merged []models.BandModel
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

// yearRange renders the catalog year filter covering window before now,
// either "2026" or "2025-2026" when the window crosses a year boundary.
func yearRange(now time.Time, window time.Duration) string {
	from := now.Add(-window)
	if from.Year() == now.Year() {
		return strconv.Itoa(now.Year())
	}
	return fmt.Sprintf("%d-%d", from.Year(), now.Year())
}

// searchUnderground runs one album search, resolves the referenced artists
// and keeps the underground ones in discovery order.
func (s *Service) searchUnderground(ctx context.Context, token, query string, pageSize int, tags []string, isNewRelease bool) ([]models.BandModel, error) {
	albums, err := throttle.Do(ctx, s.throttler, func(ctx context.Context) ([]models.Album, error) {
		return s.catalog.SearchAlbums(ctx, token, query, pageSize)
	})
	if err != nil {
		return nil, fmt.Errorf("album search %q: %w", query, err)
	}

	ids, latest := collectArtists(albums, MaxArtistIDs)
	if len(ids) == 0 {
		return []models.BandModel{}, nil
	}

	details, err := s.GetArtistDetailsInBatches(ctx, token, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Artist, len(details))
	for _, a := range details {
		byID[a.ID] = a
	}

	bands := make([]models.BandModel, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || a.Popularity > UndergroundPopularityThreshold {
			continue
		}
		album := latest[id]
		bands = append(bands, models.BandModel{
			Name:                   a.Name,
			Genres:                 append([]string(nil), a.Genres...),
			Popularity:             a.Popularity,
			ImageURL:               models.LargestImage(a.Images),
			Tags:                   append([]string(nil), tags...),
			IsFromSearch:           true,
			IsNewRelease:           isNewRelease,
			LatestAlbum:            album.Name,
			LatestAlbumReleaseDate: album.ReleaseDate,
			SpotifyID:              a.ID,
		})
	}
	return models.Dedupe(bands), nil
}

// collectArtists returns up to maxIDs unique artist IDs in album order and
// the first album seen for each.
func collectArtists(albums []models.Album, maxIDs int) ([]string, map[string]models.Album) {
	ids := make([]string, 0, maxIDs)
	latest := make(map[string]models.Album)
	for _, album := range albums {
		for _, id := range album.ArtistIDs {
			if _, seen := latest[id]; seen || id == "" {
				continue
			}
			if len(ids) == maxIDs {
				return ids, latest
			}
			latest[id] = album
			ids = append(ids, id)
		}
	}
	return ids, latest
}

func capBands(bands []models.BandModel, n int) []models.BandModel {
	if len(bands) > n {
		return bands[:n]
	}
	return bands
}

// allFailed joins errs when every entry is non-nil, otherwise returns nil.
func allFailed(errs []error) error {
	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return errors.Join(errs...)
}

// GetArtistDetailsInBatches returns full details for ids, fetched in
// sub-batches and cached under the full ID list. A failing sub-batch is
// logged and skipped; an error is returned only if all of them failed.
func (s *Service) GetArtistDetailsInBatches(ctx context.Context, token string, ids []string) ([]models.Artist, error) {
	if len(ids) == 0 {
		return []models.Artist{}, nil
	}

	// IDs are case-sensitive, so the key is built without cache.Key.
	key := "artist-details:" + strings.Join(ids, ",")
	return cache.GetOrCreateContext(ctx, s.cache, key, DetailsTTL, func(ctx context.Context) ([]models.Artist, error) {
		return s.fetchDetails(ctx, token, ids)
	})
}

func (s *Service) fetchDetails(ctx context.Context, token string, ids []string) ([]models.Artist, error) {
	var chunks [][]string
	for start := 0; start < len(ids); start += s.detailBatchSize {
		chunks = append(chunks, ids[start:min(start+s.detailBatchSize, len(ids))])
	}

	results := make([][]models.Artist, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []string) {
			defer wg.Done()
			artists, err := throttle.Do(ctx, s.throttler, func(ctx context.Context) ([]models.Artist, error) {
				return s.catalog.Artists(ctx, token, chunk)
			})
			if err != nil {
				logging.Ctx(ctx).Warn().
					Err(err).
					Int("batch", i).
					Int("ids", len(chunk)).
					Msg("artist detail batch failed, skipping")
				errs[i] = err
				return
			}
			results[i] = artists
		}(i, chunk)
	}
	wg.Wait()

	if err := allFailed(errs); err != nil {
		return nil, fmt.Errorf("fetching artist details: %w", err)
	}

	artists := make([]models.Artist, 0, len(ids))
	for _, r := range results {
		artists = append(artists, r...)
	}
	return artists, nil
}
