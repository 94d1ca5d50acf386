package scoring

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/justestif/band-recommender/internal/logging"
	"github.com/justestif/band-recommender/internal/models"
)

// Source labels used for the per-source cap.
const (
	SourceRegistered = "registered"
	SourceSimilar    = "similar"
	SourceSearch     = "search"
	SourceLocal      = "local"
)

// sameSourcePenalty is added to the genre similarity of candidates from the same source.
const sameSourcePenalty = 0.2

// DiversityConfig tunes the diversity policy.
type DiversityConfig struct {
	// Lambda balances relevance (1) against diversity (0) in MMR selection.
	Lambda float64
	// MaxSourceShare is the largest share of the result one source may fill
	// while candidates from other sources remain.
	MaxSourceShare float64
	// CooldownFactor multiplies the score of recently recommended bands.
	CooldownFactor float64
	// CooldownWindow is how long a recommendation stays on cooldown.
	CooldownWindow time.Duration
	// ExplorationRate is the share of the result that may be swapped for
	// the best candidate of an unrepresented cluster.
	ExplorationRate float64
	// Clusters is the number of k-means clusters used for exploration.
	Clusters int
}

// DefaultDiversityConfig returns the production settings.
func DefaultDiversityConfig() DiversityConfig {
	return DiversityConfig{
		Lambda:          0.7,
		MaxSourceShare:  0.6,
		CooldownFactor:  0.3,
		CooldownWindow:  7 * 24 * time.Hour,
		ExplorationRate: 0.2,
		Clusters:        4,
	}
}

// Cooldown reports whether a band was recommended within window before now.
type Cooldown interface {
	InWindow(name string, window time.Duration, now time.Time) bool
}

// partitionFunc assigns each point to one of k clusters.
type partitionFunc func(points [][]float64, k int) ([]int, error)

// Diversifier re-ranks scored candidates.
type Diversifier struct {
	cfg       DiversityConfig
	now       func() time.Time
	partition partitionFunc
}

// NewDiversifier creates a Diversifier using k-means for exploration.
func NewDiversifier(cfg DiversityConfig) *Diversifier {
	return &Diversifier{cfg: cfg, now: time.Now, partition: kmeansPartition}
}

// Source classifies a candidate for the per-source cap.
func Source(b models.BandModel) string {
	switch {
	case b.IsRegistered:
		return SourceRegistered
	case b.SimilarToArtistName != "" || b.SimilarToRegisteredBand != "":
		return SourceSimilar
	case b.IsFromSearch:
		return SourceSearch
	default:
		return SourceLocal
	}
}

// Apply returns at most limit bands chosen from scored candidates:
// cooldown de-prioritisation, then MMR selection under the per-source cap,
// then cluster-based exploration swaps. Duplicate names keep the
// highest-scored entry.
func (d *Diversifier) Apply(ctx context.Context, bands []models.BandModel, cooldown Cooldown, limit int) []models.BandModel {
	if len(bands) == 0 || limit <= 0 {
		return []models.BandModel{}
	}

	candidates := make([]models.BandModel, len(bands))
	copy(candidates, bands)

	now := d.now()
	cooled := 0
	if cooldown != nil {
		for i := range candidates {
			if cooldown.InWindow(candidates[i].Name, d.cfg.CooldownWindow, now) {
				candidates[i].Score *= d.cfg.CooldownFactor
				cooled++
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	candidates = models.Dedupe(candidates)

	limit = min(limit, len(candidates))
	selected := d.selectMMR(candidates, limit)
	swaps := d.explore(ctx, candidates, selected, limit)

	out := make([]models.BandModel, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}

	logging.Ctx(ctx).Debug().
		Int("candidates", len(candidates)).
		Int("selected", len(out)).
		Int("cooled", cooled).
		Int("exploration_swaps", swaps).
		Msg("diversity applied")
	return out
}

// selectMMR greedily picks limit candidate indexes maximising
// lambda*relevance - (1-lambda)*maxSimilarity. A source at its cap is
// skipped while candidates from other sources remain.
func (d *Diversifier) selectMMR(candidates []models.BandModel, limit int) []int {
	maxPerSource := max(1, int(math.Ceil(d.cfg.MaxSourceShare*float64(limit))))
	if d.cfg.MaxSourceShare <= 0 || d.cfg.MaxSourceShare >= 1 {
		maxPerSource = limit
	}

	sources := make([]string, len(candidates))
	for i, c := range candidates {
		sources[i] = Source(c)
	}

	chosen := make(map[int]struct{}, limit)
	perSource := make(map[string]int)
	selected := make([]int, 0, limit)

	for len(selected) < limit {
		best, bestCapped := -1, -1
		bestScore, bestCappedScore := math.Inf(-1), math.Inf(-1)

		for i, c := range candidates {
			if _, ok := chosen[i]; ok {
				continue
			}

			maxSim := 0.0
			for _, j := range selected {
				sim := GenreSimilarity(c.Genres, candidates[j].Genres)
				if sources[i] == sources[j] {
					sim += sameSourcePenalty
				}
				maxSim = math.Max(maxSim, math.Min(1, sim))
			}
			mmr := d.cfg.Lambda*(c.Score/MaxScore) - (1-d.cfg.Lambda)*maxSim

			if perSource[sources[i]] >= maxPerSource {
				if mmr > bestCappedScore {
					bestCapped, bestCappedScore = i, mmr
				}
				continue
			}
			if mmr > bestScore {
				best, bestScore = i, mmr
			}
		}

		if best < 0 {
			best = bestCapped
		}
		if best < 0 {
			break
		}
		chosen[best] = struct{}{}
		perSource[sources[best]]++
		selected = append(selected, best)
	}
	return selected
}

// explore clusters all candidates and, for each cluster with no selected
// member, swaps its best candidate in for the weakest selected one. Swaps
// are bounded by ExplorationRate*limit. Returns the number of swaps.
func (d *Diversifier) explore(ctx context.Context, candidates []models.BandModel, selected []int, limit int) int {
	maxSwaps := int(d.cfg.ExplorationRate * float64(limit))
	k := min(d.cfg.Clusters, len(candidates))
	if maxSwaps <= 0 || k < 2 || len(candidates) <= len(selected) {
		return 0
	}

	points := make([][]float64, len(candidates))
	for i, c := range candidates {
		points[i] = Features(c)
	}
	assignment, err := d.partition(points, k)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("exploration clustering failed, skipping")
		return 0
	}

	isSelected := make(map[int]struct{}, len(selected))
	represented := make(map[int]struct{})
	for _, idx := range selected {
		isSelected[idx] = struct{}{}
		represented[assignment[idx]] = struct{}{}
	}

	// Candidates are sorted by score, so the first unselected member of a
	// cluster is its best.
	var explorers []int
	seenCluster := make(map[int]struct{})
	for i := range candidates {
		cl := assignment[i]
		if _, ok := represented[cl]; ok {
			continue
		}
		if _, ok := seenCluster[cl]; ok {
			continue
		}
		seenCluster[cl] = struct{}{}
		explorers = append(explorers, i)
	}

	swapped := make(map[int]struct{})
	swaps := 0
	for _, in := range explorers {
		if swaps == maxSwaps {
			break
		}
		pos := weakest(candidates, selected, swapped)
		if pos < 0 {
			break
		}
		selected[pos] = in
		swapped[pos] = struct{}{}
		swaps++
	}
	return swaps
}

// weakest returns the position in selected of the lowest-scored entry that
// was not itself swapped in, or -1.
func weakest(candidates []models.BandModel, selected []int, skip map[int]struct{}) int {
	pos := -1
	for p, idx := range selected {
		if _, ok := skip[p]; ok {
			continue
		}
		if pos < 0 || candidates[idx].Score < candidates[selected[pos]].Score {
			pos = p
		}
	}
	return pos
}

// GenreSimilarity is the case-insensitive Jaccard index of two genre lists.
func GenreSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, g := range a {
		setA[strings.ToLower(g)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, g := range b {
		setB[strings.ToLower(g)] = struct{}{}
	}

	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
