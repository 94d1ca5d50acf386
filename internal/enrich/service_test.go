package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/lastfm"
	"github.com/justestif/band-recommender/internal/models"
)

// mockSource implements ArtistSource for testing.
type mockSource struct {
	mu      sync.Mutex
	info    map[string]lastfm.ArtistInfo
	errs    map[string]error
	similar map[string][]lastfm.SimilarArtist

	infoCalls atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func newMockSource() *mockSource {
	return &mockSource{
		info:    make(map[string]lastfm.ArtistInfo),
		errs:    make(map[string]error),
		similar: make(map[string][]lastfm.SimilarArtist),
	}
}

func (m *mockSource) ArtistInfo(ctx context.Context, artist string) (lastfm.ArtistInfo, error) {
	m.infoCalls.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return lastfm.ArtistInfo{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[artist]; ok {
		return lastfm.ArtistInfo{}, err
	}
	if info, ok := m.info[artist]; ok {
		return info, nil
	}
	return lastfm.ArtistInfo{}, lastfm.ErrArtistNotFound
}

func (m *mockSource) SimilarArtists(_ context.Context, artist string, limit int) ([]lastfm.SimilarArtist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs["similar:"+artist]; ok {
		return nil, err
	}
	similar := m.similar[artist]
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

func newTestService(source ArtistSource, opts ...Option) *Service {
	return NewService(source, cache.New(cache.NewMemoryStore(time.Minute)), opts...)
}

func TestLookup_CachesResult(t *testing.T) {
	source := newMockSource()
	source.info["Slowdive"] = lastfm.ArtistInfo{
		Name:      "Slowdive",
		Listeners: 1000,
		Tags:      []string{"shoegaze", "dream pop", "indie", "90s", "british", "alternative"},
	}
	svc := newTestService(source)

	first, err := svc.Lookup(context.Background(), "Slowdive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Lookup(context.Background(), "slowdive ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if source.infoCalls.Load() != 1 {
		t.Errorf("expected 1 source call, got %d", source.infoCalls.Load())
	}
	if first.Listeners != 1000 || second.Listeners != 1000 {
		t.Errorf("listeners = %d/%d, want 1000", first.Listeners, second.Listeners)
	}
	if len(first.Genres) != maxGenresFromTags {
		t.Errorf("expected %d genres, got %v", maxGenresFromTags, first.Genres)
	}
}

func TestLookup_ErrorNotCached(t *testing.T) {
	source := newMockSource()
	source.errs["Flaky"] = errors.New("timeout")
	svc := newTestService(source)

	if _, err := svc.Lookup(context.Background(), "Flaky"); err == nil {
		t.Fatal("expected error")
	}

	source.mu.Lock()
	delete(source.errs, "Flaky")
	source.info["Flaky"] = lastfm.ArtistInfo{Name: "Flaky", Listeners: 5}
	source.mu.Unlock()

	info, err := svc.Lookup(context.Background(), "Flaky")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Listeners != 5 {
		t.Errorf("listeners = %d, want 5", info.Listeners)
	}
}

func TestApply(t *testing.T) {
	band := models.BandModel{
		Name:     "Fjord Echo",
		Genres:   []string{"Post-Rock"},
		ImageURL: "https://platform/api/bands/1/image",
	}
	info := Info{
		Listeners: 42,
		PlayCount: 420,
		Genres:    []string{"post-rock", "ambient"},
		ImageURL:  "https://lastfm/img",
		Similar:   []string{"Mogwai"},
	}

	got := Apply(band, info)

	if got.Listeners != 42 || got.PlayCount != 420 {
		t.Errorf("stats = %d/%d", got.Listeners, got.PlayCount)
	}
	if got.ImageURL != band.ImageURL {
		t.Errorf("ImageURL = %q, existing image should win", got.ImageURL)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Post-Rock" || got.Genres[1] != "ambient" {
		t.Errorf("Genres = %v, want [Post-Rock ambient]", got.Genres)
	}
	if len(got.Similar) != 1 {
		t.Errorf("Similar = %v", got.Similar)
	}

	got = Apply(models.BandModel{Name: "No Image"}, info)
	if got.ImageURL != "https://lastfm/img" {
		t.Errorf("ImageURL = %q, want fallback image", got.ImageURL)
	}
}

func TestEnrichBands_PartialFailure(t *testing.T) {
	source := newMockSource()
	source.info["A"] = lastfm.ArtistInfo{Name: "A", Listeners: 10}
	source.errs["B"] = errors.New("boom")
	source.info["C"] = lastfm.ArtistInfo{Name: "C", Listeners: 30}
	svc := newTestService(source)

	bands := []models.BandModel{{Name: "A"}, {Name: "B", Popularity: 7}, {Name: "C"}}
	got := svc.EnrichBands(context.Background(), bands)

	if len(got) != 3 {
		t.Fatalf("expected 3 bands, got %d", len(got))
	}
	if got[0].Listeners != 10 || got[2].Listeners != 30 {
		t.Errorf("listeners = %d, %d", got[0].Listeners, got[2].Listeners)
	}
	if got[1].Name != "B" || got[1].Popularity != 7 || got[1].Listeners != 0 {
		t.Errorf("failed band should be unchanged, got %+v", got[1])
	}
}

func TestEnrichBands_Empty(t *testing.T) {
	svc := newTestService(newMockSource())

	got := svc.EnrichBands(context.Background(), nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestEnrichBands_RespectsConcurrency(t *testing.T) {
	source := newMockSource()
	source.delay = 10 * time.Millisecond
	bands := make([]models.BandModel, 12)
	for i := range bands {
		name := string(rune('a' + i))
		bands[i] = models.BandModel{Name: name}
		source.info[name] = lastfm.ArtistInfo{Name: name}
	}
	svc := newTestService(source, WithConcurrency(2))

	svc.EnrichBands(context.Background(), bands)

	if got := source.maxActive.Load(); got > 2 {
		t.Errorf("max concurrent lookups = %d, want <= 2", got)
	}
}

func TestSimilarArtists(t *testing.T) {
	source := newMockSource()
	source.similar["Slowdive"] = []lastfm.SimilarArtist{
		{Name: "Ride", Match: 1},
		{Name: "Slowdive", Match: 0.99},
		{Name: "Known Band", Match: 0.9},
		{Name: "ride", Match: 0.8},
		{Name: "Lush", Match: 0.7},
		{Name: "Chapterhouse", Match: 0.6},
	}
	source.info["Ride"] = lastfm.ArtistInfo{Name: "Ride", Listeners: 900}
	svc := newTestService(source)

	exclude := map[string]struct{}{"known band": {}}
	got, err := svc.SimilarArtists(context.Background(), "Slowdive", 2, exclude)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 similar bands, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Ride" || got[1].Name != "Lush" {
		t.Errorf("names = %s, %s; want Ride, Lush", got[0].Name, got[1].Name)
	}
	if got[0].Listeners != 900 {
		t.Errorf("similar results should be enriched, got listeners %d", got[0].Listeners)
	}
}

func TestSimilarArtists_Error(t *testing.T) {
	source := newMockSource()
	source.errs["similar:Seed"] = errors.New("down")
	svc := newTestService(source)

	if _, err := svc.SimilarArtists(context.Background(), "Seed", 5, nil); err == nil {
		t.Error("expected error")
	}
}
