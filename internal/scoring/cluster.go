package scoring

import (
	"fmt"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/band-recommender/internal/models"
)

// Features places a candidate in exploration space:
// (obscurity, listener signal, relevance).
func Features(b models.BandModel) []float64 {
	return []float64{
		Obscurity(b),
		ListenerSignal(b.Listeners),
		b.Score / MaxScore,
	}
}

// candidateObservation implements clusters.Observation for one candidate.
type candidateObservation struct {
	index  int
	coords clusters.Coordinates
}

func (o candidateObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o candidateObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// kmeansPartition runs k-means over points and returns each point's cluster.
func kmeansPartition(points [][]float64, k int) ([]int, error) {
	var obs clusters.Observations
	for i, p := range points {
		obs = append(obs, candidateObservation{index: i, coords: clusters.Coordinates(p)})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, k)
	if err != nil {
		return nil, fmt.Errorf("partitioning %d candidates into %d clusters: %w", len(points), k, err)
	}

	assignment := make([]int, len(points))
	for cl, cluster := range result {
		for _, o := range cluster.Observations {
			if co, ok := o.(candidateObservation); ok {
				assignment[co.index] = cl
			}
		}
	}
	return assignment, nil
}
