package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/band-recommender/internal/models"
)

// BandRepository reads registered bands. Cover images are only loaded by CoverImage.
type BandRepository struct {
	pool *pgxpool.Pool
}

const bandColumns = `id, name, genre, country, city`

// Genre matches are case-insensitive substrings of the comma-delimited genre column.
const genreMatch = `position(lower($1) in lower(genre)) > 0`

// Location matches the city, the country, or "City, Country".
const locationMatch = `lower(%[1]s) IN (lower(city), lower(country), lower(city || ', ' || country))`

// ByGenre returns bands whose genre list contains genre.
func (r *BandRepository) ByGenre(ctx context.Context, genre string) ([]models.RegisteredBand, error) {
	query := `SELECT ` + bandColumns + ` FROM bands WHERE ` + genreMatch + ` ORDER BY name`
	return r.list(ctx, "bands by genre", query, genre)
}

// ByLocation returns bands from location.
func (r *BandRepository) ByLocation(ctx context.Context, location string) ([]models.RegisteredBand, error) {
	query := `SELECT ` + bandColumns + ` FROM bands WHERE ` + fmt.Sprintf(locationMatch, "$1") + ` ORDER BY name`
	return r.list(ctx, "bands by location", query, location)
}

// ByGenreAndLocation returns bands matching both genre and location.
func (r *BandRepository) ByGenreAndLocation(ctx context.Context, genre, location string) ([]models.RegisteredBand, error) {
	query := `SELECT ` + bandColumns + ` FROM bands WHERE ` + genreMatch +
		` AND ` + fmt.Sprintf(locationMatch, "$2") + ` ORDER BY name`
	return r.list(ctx, "bands by genre and location", query, genre, location)
}

// All returns every registered band.
func (r *BandRepository) All(ctx context.Context) ([]models.RegisteredBand, error) {
	query := `SELECT ` + bandColumns + ` FROM bands ORDER BY name`
	return r.list(ctx, "all bands", query)
}

// CoverImage returns a band's cover image bytes.
// Returns ErrNotFound if the band does not exist or has no image.
func (r *BandRepository) CoverImage(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var image []byte
	err := r.pool.QueryRow(ctx, `SELECT cover_image FROM bands WHERE id = $1`, id).Scan(&image)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying cover image: %w", err)
	}
	if len(image) == 0 {
		return nil, ErrNotFound
	}
	return image, nil
}

// Create inserts a band, assigning an ID if it has none.
func (r *BandRepository) Create(ctx context.Context, band *models.RegisteredBand) error {
	if band.ID == uuid.Nil {
		band.ID = uuid.New()
	}
	query := `
		INSERT INTO bands (id, name, genre, country, city, cover_image)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		band.ID,
		band.Name,
		band.Genre,
		band.Country,
		band.City,
		band.CoverImage,
	)
	if err != nil {
		return fmt.Errorf("inserting band: %w", err)
	}
	return nil
}

func (r *BandRepository) list(ctx context.Context, what, query string, args ...any) ([]models.RegisteredBand, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var bands []models.RegisteredBand
	for rows.Next() {
		var band models.RegisteredBand
		if err := rows.Scan(
			&band.ID,
			&band.Name,
			&band.Genre,
			&band.Country,
			&band.City,
		); err != nil {
			return nil, fmt.Errorf("scanning band: %w", err)
		}
		bands = append(bands, band)
	}
	return bands, rows.Err()
}
