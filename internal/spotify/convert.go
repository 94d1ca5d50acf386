package spotify

import (
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/band-recommender/internal/models"
)

func convertArtists(full []spotify.FullArtist) []models.Artist {
	artists := make([]models.Artist, 0, len(full))
	for _, a := range full {
		artists = append(artists, convertArtist(a))
	}
	return artists
}

// convertArtist converts a Spotify FullArtist to models.Artist.
func convertArtist(a spotify.FullArtist) models.Artist {
	return models.Artist{
		ID:         a.ID.String(),
		Name:       a.Name,
		Genres:     append([]string(nil), a.Genres...),
		Popularity: int(a.Popularity),
		Followers:  int(a.Followers.Count),
		Images:     convertImages(a.Images),
	}
}

// convertAlbum keeps the album's artist IDs in credit order.
func convertAlbum(a spotify.SimpleAlbum) models.Album {
	ids := make([]string, 0, len(a.Artists))
	for _, artist := range a.Artists {
		if artist.ID != "" {
			ids = append(ids, artist.ID.String())
		}
	}
	return models.Album{
		ID:          a.ID.String(),
		Name:        a.Name,
		ReleaseDate: a.ReleaseDate,
		ArtistIDs:   ids,
		Images:      convertImages(a.Images),
	}
}

func convertPlayed(item spotify.RecentlyPlayedItem) models.PlayedTrack {
	ids := make([]string, 0, len(item.Track.Artists))
	names := make([]string, 0, len(item.Track.Artists))
	for _, artist := range item.Track.Artists {
		ids = append(ids, artist.ID.String())
		names = append(names, artist.Name)
	}
	return models.PlayedTrack{
		ID:          item.Track.ID.String(),
		Name:        item.Track.Name,
		ArtistIDs:   ids,
		ArtistNames: names,
		PlayedAt:    item.PlayedAt,
	}
}

func convertImages(images []spotify.Image) []models.Image {
	if len(images) == 0 {
		return nil
	}
	out := make([]models.Image, len(images))
	for i, img := range images {
		out[i] = models.Image{URL: img.URL, Width: int(img.Width), Height: int(img.Height)}
	}
	return out
}
