//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/justestif/band-recommender/internal/models"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bands_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.Migrate(ctx))
	return database
}

func seed(t *testing.T, repo *BandRepository) map[string]uuid.UUID {
	t.Helper()
	bands := []models.RegisteredBand{
		{Name: "Fjord Echo", Genre: "Post-Rock, Ambient", Country: "Norway", City: "Bergen", CoverImage: []byte{0x89, 0x50}},
		{Name: "Night Tram", Genre: "jazz", Country: "Norway", City: "Oslo"},
		{Name: "Dust Choir", Genre: "folk, rock", Country: "Ireland", City: "Cork"},
	}
	ids := make(map[string]uuid.UUID, len(bands))
	for i := range bands {
		require.NoError(t, repo.Create(context.Background(), &bands[i]))
		ids[bands[i].Name] = bands[i].ID
	}
	return ids
}

func names(bands []models.RegisteredBand) []string {
	out := make([]string, len(bands))
	for i, b := range bands {
		out[i] = b.Name
	}
	return out
}

func TestBandRepository(t *testing.T) {
	database := setupDB(t)
	repo := database.Bands()
	ids := seed(t, repo)
	ctx := context.Background()

	t.Run("by genre is case-insensitive substring", func(t *testing.T) {
		bands, err := repo.ByGenre(ctx, "rock")
		require.NoError(t, err)
		assert.Equal(t, []string{"Dust Choir", "Fjord Echo"}, names(bands))
	})

	t.Run("by location matches city or country", func(t *testing.T) {
		bands, err := repo.ByLocation(ctx, "norway")
		require.NoError(t, err)
		assert.Equal(t, []string{"Fjord Echo", "Night Tram"}, names(bands))

		bands, err = repo.ByLocation(ctx, "Oslo, Norway")
		require.NoError(t, err)
		assert.Equal(t, []string{"Night Tram"}, names(bands))
	})

	t.Run("by genre and location", func(t *testing.T) {
		bands, err := repo.ByGenreAndLocation(ctx, "jazz", "Oslo")
		require.NoError(t, err)
		assert.Equal(t, []string{"Night Tram"}, names(bands))

		bands, err = repo.ByGenreAndLocation(ctx, "jazz", "Cork")
		require.NoError(t, err)
		assert.Empty(t, bands)
	})

	t.Run("all", func(t *testing.T) {
		bands, err := repo.All(ctx)
		require.NoError(t, err)
		assert.Len(t, bands, 3)
		assert.Nil(t, bands[0].CoverImage)
	})

	t.Run("cover image", func(t *testing.T) {
		img, err := repo.CoverImage(ctx, ids["Fjord Echo"])
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 0x50}, img)

		_, err = repo.CoverImage(ctx, ids["Night Tram"])
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.CoverImage(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
