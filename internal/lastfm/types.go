package lastfm

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ArtistInfo is the subset of artist.getInfo used for enrichment.
type ArtistInfo struct {
	Name      string
	MBID      string
	URL       string
	Listeners int64
	PlayCount int64
	Tags      []string // top tags, most applied first
	ImageURL  string   // largest non-empty image
	Similar   []string // similar artist names
}

// SimilarArtist is one entry of artist.getSimilar.
type SimilarArtist struct {
	Name  string
	Match float64 // 0..1 similarity to the seed
	URL   string
	MBID  string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// image is a sized Last.fm image reference.
type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// artistInfoResponse is the JSON response for artist.getInfo.
// Last.fm sends "" instead of an object for empty tags and similar lists,
// so those stay raw until decoded.
type artistInfoResponse struct {
	Artist struct {
		Name  string  `json:"name"`
		MBID  string  `json:"mbid"`
		URL   string  `json:"url"`
		Image []image `json:"image"`
		Stats struct {
			Listeners flexInt `json:"listeners"`
			PlayCount flexInt `json:"playcount"`
		} `json:"stats"`
		Similar json.RawMessage `json:"similar"`
		Tags    json.RawMessage `json:"tags"`
	} `json:"artist"`
}

type tagList struct {
	Tag []Tag `json:"tag"`
}

type similarList struct {
	Artist []struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// similarArtistsResponse is the JSON response for artist.getSimilar.
type similarArtistsResponse struct {
	SimilarArtists struct {
		Artist []struct {
			Name  string    `json:"name"`
			MBID  string    `json:"mbid"`
			Match flexFloat `json:"match"`
			URL   string    `json:"url"`
		} `json:"artist"`
		Attr struct {
			Artist string `json:"artist"`
		} `json:"@attr"`
	} `json:"similarartists"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// flexInt decodes numbers Last.fm sends either quoted or bare.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
