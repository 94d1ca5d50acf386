package models

import "time"

// Image is an artwork reference with its pixel dimensions.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LargestImage returns the URL of the highest-resolution image, or "".
func LargestImage(images []Image) string {
	best := -1
	var url string
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if area := img.Width * img.Height; area > best {
			best = area
			url = img.URL
		}
	}
	return url
}

// Artist is the streaming catalog's view of an artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
	Images     []Image  `json:"images"`
}

// Album is a search result from the streaming catalog.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ReleaseDate string   `json:"releaseDate"`
	ArtistIDs   []string `json:"artistIds"`
	Images      []Image  `json:"images"`
}

// PlayedTrack is an entry of the user's recently played history.
type PlayedTrack struct {
	ID          string
	Name        string
	ArtistIDs   []string
	ArtistNames []string
	PlayedAt    time.Time
}
