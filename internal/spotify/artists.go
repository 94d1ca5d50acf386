package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/band-recommender/internal/models"
)

// Spotify page sizes.
const (
	maxTopArtists      = 50
	maxFollowedPerPage = 50
	maxRecentlyPlayed  = 50
)

// TopArtists returns the user's top artists, most played first.
func (c *Catalog) TopArtists(ctx context.Context, token string) ([]models.Artist, error) {
	api := c.clientFor(ctx, token).api

	page, err := api.CurrentUsersTopArtists(ctx, spotify.Limit(maxTopArtists))
	if observe(err) != nil {
		return nil, fmt.Errorf("fetching top artists: %w", err)
	}
	return convertArtists(page.Artists), nil
}

// FollowedArtists returns every artist the user follows, walking the cursor
// until it is exhausted.
func (c *Catalog) FollowedArtists(ctx context.Context, token string) ([]models.Artist, error) {
	api := c.clientFor(ctx, token).api

	page, err := api.CurrentUsersFollowedArtists(ctx, spotify.Limit(maxFollowedPerPage))
	if observe(err) != nil {
		return nil, fmt.Errorf("fetching followed artists: %w", err)
	}

	var artists []models.Artist
	for {
		artists = append(artists, convertArtists(page.Artists)...)

		err = api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if observe(err) != nil {
			return nil, fmt.Errorf("fetching next followed page: %w", err)
		}
	}
	return artists, nil
}

// RecentlyPlayed returns the user's most recently played tracks.
func (c *Catalog) RecentlyPlayed(ctx context.Context, token string) ([]models.PlayedTrack, error) {
	api := c.clientFor(ctx, token).api

	items, err := api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: maxRecentlyPlayed})
	if observe(err) != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	tracks := make([]models.PlayedTrack, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, convertPlayed(item))
	}
	return tracks, nil
}

// Artist returns a single artist by ID.
func (c *Catalog) Artist(ctx context.Context, token, id string) (models.Artist, error) {
	api := c.clientFor(ctx, token).api

	artist, err := api.GetArtist(ctx, spotify.ID(id))
	if observe(err) != nil {
		return models.Artist{}, fmt.Errorf("fetching artist %s: %w", id, err)
	}
	return convertArtist(*artist), nil
}

// Artists returns full details for up to MaxArtistsPerRequest IDs.
// Unknown IDs are skipped.
func (c *Catalog) Artists(ctx context.Context, token string, ids []string) ([]models.Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("fetching artists: %d ids exceeds limit of %d", len(ids), MaxArtistsPerRequest)
	}

	spotifyIDs := make([]spotify.ID, len(ids))
	for i, id := range ids {
		spotifyIDs[i] = spotify.ID(id)
	}

	api := c.clientFor(ctx, token).api
	full, err := api.GetArtists(ctx, spotifyIDs...)
	if observe(err) != nil {
		return nil, fmt.Errorf("fetching %d artists: %w", len(ids), err)
	}

	artists := make([]models.Artist, 0, len(full))
	for _, a := range full {
		if a == nil {
			continue
		}
		artists = append(artists, convertArtist(*a))
	}
	return artists, nil
}

// SearchAlbums runs an album search and returns at most limit albums.
func (c *Catalog) SearchAlbums(ctx context.Context, token, query string, limit int) ([]models.Album, error) {
	api := c.clientFor(ctx, token).api

	result, err := api.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(limit))
	if observe(err) != nil {
		return nil, fmt.Errorf("searching albums %q: %w", query, err)
	}
	if result.Albums == nil {
		return nil, nil
	}

	albums := make([]models.Album, 0, len(result.Albums.Albums))
	for _, a := range result.Albums.Albums {
		albums = append(albums, convertAlbum(a))
	}
	return albums, nil
}
