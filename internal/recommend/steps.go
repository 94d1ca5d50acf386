package recommend

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justestif/band-recommender/internal/metrics"
	"github.com/justestif/band-recommender/internal/models"
)

// step is one independent sub-operation contributing candidates.
type step struct {
	name string
	run  func(ctx context.Context) ([]models.BandModel, error)
}

// stepResult is a step's outcome. A failed step has err set and no bands.
type stepResult struct {
	name  string
	bands []models.BandModel
	err   error
}

// runSteps runs steps concurrently and waits for all of them. One step's
// failure never cancels the others.
func runSteps(ctx context.Context, steps ...step) []stepResult {
	results := make([]stepResult, len(steps))

	var wg sync.WaitGroup
	for i, s := range steps {
		wg.Add(1)
		go func(i int, s step) {
			defer wg.Done()
			bands, err := s.run(ctx)
			if err != nil {
				bands = nil
			}
			results[i] = stepResult{name: s.name, bands: bands, err: err}
		}(i, s)
	}
	wg.Wait()

	return results
}

// collect concatenates the bands of successful results in order and logs
// each failure.
func collect(log *zerolog.Logger, results []stepResult) []models.BandModel {
	var bands []models.BandModel
	for _, r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Str("step", r.name).Msg("recommendation step failed, continuing without it")
			metrics.StepFailures.WithLabelValues(stepLabel(r.name)).Inc()
			continue
		}
		bands = append(bands, r.bands...)
	}
	return bands
}

// stepLabel drops per-seed suffixes to keep metric cardinality bounded.
func stepLabel(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name[:i]
		}
	}
	return name
}
