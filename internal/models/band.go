// Package models defines the recommendation candidate and the catalog value
// types shared by the providers, discovery and the recommender.
package models

import (
	"strings"

	"github.com/google/uuid"
)

// Candidate tags.
const (
	TagNew     = "new"
	TagHipster = "hipster"
	TagRecent  = "recent"
)

// BandModel is a recommendation candidate. Name is the identity key and is
// compared case-insensitively across all sources.
type BandModel struct {
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Location   string   `json:"location,omitempty"`
	Popularity int      `json:"popularity"`               // 0-100, provider supplied
	Listeners  int64    `json:"listeners,omitempty"`      // 0 means unknown
	PlayCount  int64    `json:"playCount,omitempty"`      // 0 means unknown
	Similar    []string `json:"similarArtists,omitempty"` // similar artist names
	ImageURL   string   `json:"imageUrl,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	IsFromSearch bool `json:"isFromSearch"`
	IsRegistered bool `json:"isRegistered"`
	IsNewRelease bool `json:"isNewRelease"`

	LatestAlbum            string `json:"latestAlbum,omitempty"`
	LatestAlbumReleaseDate string `json:"latestAlbumReleaseDate,omitempty"`

	SimilarToArtistName     string `json:"similarToArtistName,omitempty"`
	SimilarToRegisteredBand string `json:"similarToRegisteredBand,omitempty"`

	SpotifyID    string `json:"spotifyId,omitempty"`
	RegisteredID string `json:"registeredId,omitempty"`

	Score float64 `json:"score"`
}

// Key returns the case-insensitive deduplication key.
func (b BandModel) Key() string {
	return NameKey(b.Name)
}

// HasTag reports whether the band carries the given tag.
func (b BandModel) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NameKey normalizes an artist name for case-insensitive comparison.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisteredBand is a band registered on the platform. It is owned by the
// persistence layer and read-only here.
type RegisteredBand struct {
	ID         uuid.UUID
	Name       string
	Genre      string // comma-delimited
	Country    string
	City       string
	CoverImage []byte
}

// GenreList splits the comma-delimited genre string.
func (b RegisteredBand) GenreList() []string {
	return SplitGenres(b.Genre)
}

// Location joins city and country, skipping empty parts.
func (b RegisteredBand) Location() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(b.City); c != "" {
		parts = append(parts, c)
	}
	if c := strings.TrimSpace(b.Country); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

// SplitGenres splits a comma-delimited genre string, dropping empty entries.
func SplitGenres(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	raw := strings.Split(s, ",")
	genres := make([]string, 0, len(raw))
	for _, g := range raw {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// MergeGenres returns the case-insensitive union of a and b, keeping the
// order of a followed by new entries of b.
func MergeGenres(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, g := range list {
			k := NameKey(g)
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, g)
		}
	}
	return merged
}

// Dedupe removes bands whose name was already seen, keeping the first one.
func Dedupe(bands []BandModel) []BandModel {
	seen := make(map[string]struct{}, len(bands))
	out := make([]BandModel, 0, len(bands))
	for _, b := range bands {
		k := b.Key()
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return out
}

// NameSet builds a case-insensitive set of band names.
func NameSet(bands ...[]BandModel) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range bands {
		for _, b := range list {
			set[b.Key()] = struct{}{}
		}
	}
	return set
}
