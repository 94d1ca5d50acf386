// Package scoring ranks recommendation candidates and re-ranks them for
// diversity, exploration and cooldown.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/justestif/band-recommender/internal/models"
)

// Weights are the points each signal contributes to a 0-100 score.
// Signal values are in [0, 1]; bonuses are added as-is.
type Weights struct {
	Genre      float64
	Location   float64
	Obscurity  float64
	Listeners  float64
	Similarity float64

	RegisteredBonus float64
	SearchBonus     float64
	NewReleaseBonus float64
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		Genre:           40,
		Location:        15,
		Obscurity:       15,
		Listeners:       10,
		Similarity:      10,
		RegisteredBonus: 25,
		SearchBonus:     5,
		NewReleaseBonus: 5,
	}
}

// MaxScore is the upper bound of a score.
const MaxScore = 100

// Context carries the listener preferences and the provenance of a candidate group.
type Context struct {
	Genres       []string
	Location     string
	IsRegistered bool
	IsFromSearch bool
}

// Scorer assigns relevance scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with w.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score returns copies of bands with Score set, highest first.
func (s *Scorer) Score(bands []models.BandModel, c Context) []models.BandModel {
	scored := make([]models.BandModel, len(bands))
	prefs := genreSet(c.Genres)
	for i, b := range bands {
		b.Score = s.score(b, prefs, c)
		scored[i] = b
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func (s *Scorer) score(b models.BandModel, prefs map[string]struct{}, c Context) float64 {
	w := s.weights
	score := w.Genre*GenreAffinity(b.Genres, prefs) +
		w.Location*LocationMatch(b.Location, c.Location) +
		w.Obscurity*Obscurity(b) +
		w.Listeners*ListenerSignal(b.Listeners) +
		w.Similarity*SimilaritySignal(b)

	if c.IsRegistered || b.IsRegistered {
		score += w.RegisteredBonus
	}
	if c.IsFromSearch || b.IsFromSearch {
		score += w.SearchBonus
	}
	if b.IsNewRelease {
		score += w.NewReleaseBonus
	}
	return math.Max(0, math.Min(MaxScore, score))
}

func genreSet(genres []string) map[string]struct{} {
	set := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		if k := models.NameKey(g); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// GenreAffinity is 0 without overlap and 0.5..1 with it, growing with the
// share of the band's genres that match a preference. "indie rock" matches
// a "rock" preference. Without preferences every band is neutral (0.5);
// a band without genres scores 0.25.
func GenreAffinity(genres []string, prefs map[string]struct{}) float64 {
	if len(prefs) == 0 {
		return 0.5
	}
	if len(genres) == 0 {
		return 0.25
	}

	matched := 0
	for _, g := range genres {
		if genreMatches(models.NameKey(g), prefs) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return 0.5 + 0.5*float64(matched)/float64(len(genres))
}

func genreMatches(g string, prefs map[string]struct{}) bool {
	if g == "" {
		return false
	}
	if _, ok := prefs[g]; ok {
		return true
	}
	for p := range prefs {
		if strings.Contains(g, p) || strings.Contains(p, g) {
			return true
		}
	}
	return false
}

// LocationMatch is 1 when either location contains the other, else 0.
func LocationMatch(bandLocation, wanted string) float64 {
	b, w := models.NameKey(bandLocation), models.NameKey(wanted)
	if b == "" || w == "" {
		return 0
	}
	if strings.Contains(b, w) || strings.Contains(w, b) {
		return 1
	}
	return 0
}

// Obscurity is the inverse of catalog popularity. Bands with no catalog
// popularity are neutral.
func Obscurity(b models.BandModel) float64 {
	if b.Popularity <= 0 && !b.IsFromSearch {
		return 0.5
	}
	p := math.Max(0, math.Min(100, float64(b.Popularity)))
	return (100 - p) / 100
}

// ListenerSignal grows logarithmically with listeners, reaching 1 at one million.
// Unknown listener counts score 0.
func ListenerSignal(listeners int64) float64 {
	if listeners <= 0 {
		return 0
	}
	return math.Min(1, math.Log10(1+float64(listeners))/6)
}

// SimilaritySignal rewards candidates reached through similar-artist expansion.
func SimilaritySignal(b models.BandModel) float64 {
	switch {
	case b.SimilarToArtistName != "":
		return 1
	case b.SimilarToRegisteredBand != "":
		return 0.8
	case len(b.Similar) > 0:
		return 0.3
	default:
		return 0
	}
}
