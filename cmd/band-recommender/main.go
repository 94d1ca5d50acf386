// Command band-recommender runs the band recommendation HTTP service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/justestif/band-recommender/internal/api"
	"github.com/justestif/band-recommender/internal/cache"
	"github.com/justestif/band-recommender/internal/config"
	"github.com/justestif/band-recommender/internal/cooldown"
	"github.com/justestif/band-recommender/internal/db"
	"github.com/justestif/band-recommender/internal/discovery"
	"github.com/justestif/band-recommender/internal/enrich"
	"github.com/justestif/band-recommender/internal/lastfm"
	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/musicbrainz"
	"github.com/justestif/band-recommender/internal/recommend"
	"github.com/justestif/band-recommender/internal/scoring"
	"github.com/justestif/band-recommender/internal/spotify"
	"github.com/justestif/band-recommender/internal/throttle"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx := context.Background()

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	store, closeStore, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()
	c := cache.New(store)

	permits := cfg.Recommend.ThrottlePermits
	enricher := enrich.NewService(
		lastfm.NewClient(&cfg.LastFM),
		c,
		enrich.WithConcurrency(cfg.Recommend.EnrichConcurrency),
		enrich.WithThrottler(throttle.New("lastfm", permits)),
	)

	catalog := spotify.NewCatalog()
	finder := discovery.NewService(
		catalog,
		database.Bands(),
		enricher,
		c,
		discovery.WithThrottler(throttle.New("spotify", permits)),
		discovery.WithImageBaseURL(cfg.Server.PublicBaseURL),
	)

	diversity := scoring.DefaultDiversityConfig()
	diversity.CooldownWindow = cfg.CooldownWindow()

	recommender := recommend.NewService(recommend.Deps{
		Catalog:     catalog,
		Discovery:   finder,
		Location:    musicbrainz.NewClient(cfg.MusicBrainz),
		Enricher:    enricher,
		Scorer:      scoring.NewScorer(scoring.DefaultWeights()),
		Diversifier: scoring.NewDiversifier(diversity),
		Cooldown:    cooldown.New(),
	}, recommend.Config{
		Limit:          cfg.Recommend.Limit,
		CooldownWindow: cfg.CooldownWindow(),
	})

	server := api.NewServer(api.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, api.NewHandlers(recommender, database.Bands(), database))

	logging.Info().
		Str("cache", cfg.Cache.Backend).
		Int("limit", cfg.Recommend.Limit).
		Int("throttle_permits", permits).
		Msg("band recommender configured")

	return server.Run()
}

func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	if cfg.Backend == config.CacheRedis {
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	return cache.NewMemoryStore(cache.DefaultCleanupInterval), func() {}, nil
}
