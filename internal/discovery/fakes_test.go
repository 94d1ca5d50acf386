package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/enrich"
	"github.com/justestif/band-recommender/internal/models"
)

var errProvider = errors.New("provider unavailable")

type fakeCatalog struct {
	mu        sync.Mutex
	albums    map[string][]models.Album // by query
	artists   map[string]models.Artist  // by ID
	failQuery map[string]bool
	failID    map[string]bool // any batch containing this ID fails

	queries      []string
	pageSizes    []int
	artistsCalls [][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		albums:    make(map[string][]models.Album),
		artists:   make(map[string]models.Artist),
		failQuery: make(map[string]bool),
		failID:    make(map[string]bool),
	}
}

func (f *fakeCatalog) addArtist(id, name string, popularity int, genres ...string) {
	f.artists[id] = models.Artist{ID: id, Name: name, Popularity: popularity, Genres: genres}
}

func (f *fakeCatalog) SearchAlbums(_ context.Context, _ string, query string, limit int) ([]models.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.pageSizes = append(f.pageSizes, limit)
	if f.failQuery[query] {
		return nil, errProvider
	}
	return f.albums[query], nil
}

func (f *fakeCatalog) Artists(_ context.Context, _ string, ids []string) ([]models.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistsCalls = append(f.artistsCalls, append([]string(nil), ids...))
	var out []models.Artist
	for _, id := range ids {
		if f.failID[id] {
			return nil, errProvider
		}
		if a, ok := f.artists[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCatalog) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeStore struct {
	bands []models.RegisteredBand
	err   error

	mu    sync.Mutex
	calls []string
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeStore) ByGenre(_ context.Context, genre string) ([]models.RegisteredBand, error) {
	f.record("genre:" + genre)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RegisteredBand
	for _, b := range f.bands {
		if hasGenre(b, genre) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ByLocation(_ context.Context, location string) ([]models.RegisteredBand, error) {
	f.record("location:" + location)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RegisteredBand
	for _, b := range f.bands {
		if b.City == location || b.Country == location {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ByGenreAndLocation(_ context.Context, genre, location string) ([]models.RegisteredBand, error) {
	f.record("genre+location:" + genre + "|" + location)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RegisteredBand
	for _, b := range f.bands {
		if hasGenre(b, genre) && (b.City == location || b.Country == location) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) All(_ context.Context) ([]models.RegisteredBand, error) {
	f.record("all")
	if f.err != nil {
		return nil, f.err
	}
	return f.bands, nil
}

func hasGenre(b models.RegisteredBand, genre string) bool {
	for _, g := range b.GenreList() {
		if models.NameKey(g) == models.NameKey(genre) {
			return true
		}
	}
	return false
}

type fakeEnricher struct {
	info map[string]enrich.Info
}

func (f *fakeEnricher) Lookup(_ context.Context, name string) (enrich.Info, error) {
	if info, ok := f.info[name]; ok {
		return info, nil
	}
	return enrich.Info{}, errProvider
}

func registered(name, genre, city, country string) models.RegisteredBand {
	return models.RegisteredBand{ID: uuid.New(), Name: name, Genre: genre, City: city, Country: country}
}

func newTestService(catalog Catalog, store BandStore, enricher Enricher, opts ...Option) *Service {
	if enricher == nil {
		enricher = &fakeEnricher{}
	}
	base := []Option{
		WithImageBaseURL("https://bands.example"),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }),
	}
	return NewService(catalog, store, enricher, cache.New(cache.NewMemoryStore(time.Minute)), append(base, opts...)...)
}
