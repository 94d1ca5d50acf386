// Package cooldown remembers when each band was last recommended so the same
// names are not pushed to listeners run after run.
//
// The state is process-local and lost on restart. It is a soft diversity
// hint: concurrent runs may overwrite each other's timestamps.
package cooldown

import (
	"sync"
	"time"

	"github.com/justestif/band-recommender/internal/models"
)

// DefaultWindow is the cooldown window used when none is configured.
const DefaultWindow = 7 * 24 * time.Hour

// Tracker maps band names (case-insensitive) to their last recommendation time.
// Each key is updated atomically; there is no cross-key transaction.
type Tracker struct {
	entries sync.Map // string -> time.Time
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Record stamps every name with at.
func (t *Tracker) Record(names []string, at time.Time) {
	for _, name := range names {
		if k := models.NameKey(name); k != "" {
			t.entries.Store(k, at)
		}
	}
}

// LastRecommended returns when name was last recommended.
func (t *Tracker) LastRecommended(name string) (time.Time, bool) {
	v, ok := t.entries.Load(models.NameKey(name))
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// InWindow reports whether name was recommended less than window before now.
func (t *Tracker) InWindow(name string, window time.Duration, now time.Time) bool {
	last, ok := t.LastRecommended(name)
	return ok && now.Sub(last) < window
}

// Purge removes entries older than window and returns how many were removed.
func (t *Tracker) Purge(window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	removed := 0
	t.entries.Range(func(key, value any) bool {
		if value.(time.Time).Before(cutoff) {
			// Only delete the value we saw; a concurrent Record wins.
			if t.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len returns the number of tracked names.
func (t *Tracker) Len() int {
	n := 0
	t.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Days converts a day count to a window duration.
func Days(n int) time.Duration {
	if n <= 0 {
		return DefaultWindow
	}
	return time.Duration(n) * 24 * time.Hour
}
