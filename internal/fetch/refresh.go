package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"notecrumbs/internal/metrics"
)

// refreshState is the debounced-refresh state machine of spec.md §4.7:
// Fresh -> InProgress -> Completed -> Fresh, with a stuck-after-10min
// cancel+respawn escape hatch. Fresh is represented by the entry's absence.
type refreshState int

const (
	stateInProgress refreshState = iota
	stateCompleted
)

type refreshEntry struct {
	mu        sync.Mutex
	state     refreshState
	startedAt time.Time
	completedAt time.Time
	cancel    context.CancelFunc
}

// stuckAfter is how long an InProgress task may run before Refresher
// considers it stuck and cancels/respawns it (spec.md §4.4 step 3).
const stuckAfter = 10 * time.Minute

// sweepThreshold is P in spec.md §4.4: once the map exceeds this many
// entries, a call to Ensure sweeps stale Completed entries first.
const sweepThreshold = 1000

// Refresher runs one named debounced-refresh domain (profile-feed or
// note-secondary, each gets its own Refresher instance since they have
// independent keyspaces and intervals).
type Refresher struct {
	name     string
	interval time.Duration
	entries  *xsync.MapOf[string, *refreshEntry]
}

// NewRefresher builds a refresh domain with the given debounce interval.
func NewRefresher(name string, interval time.Duration) *Refresher {
	return &Refresher{
		name:     name,
		interval: interval,
		entries:  xsync.NewMapOf[string, *refreshEntry](),
	}
}

// Ensure spawns task in the background for key if the current state is
// Fresh (absent), Completed at least interval ago, or stuck InProgress for
// over 10 minutes. Otherwise it is a no-op. task is invoked with a context
// cancelled if the entry is later judged stuck, so long-stuck tasks are
// actually interrupted, not just forgotten (spec.md Design Notes,
// "cancellation handles").
func (r *Refresher) Ensure(ctx context.Context, key string, task func(context.Context) error) {
	r.maybeSweep()

	entry, loaded := r.entries.LoadOrCompute(key, func() *refreshEntry { return &refreshEntry{} })
	if !loaded {
		metrics.RefreshEntriesGauge.Add(1)
	}

	entry.mu.Lock()
	now := time.Now()
	switch {
	case entry.startedAt.IsZero() && entry.completedAt.IsZero():
		r.spawnLocked(ctx, key, entry, task)
	case entry.state == stateCompleted:
		if now.Sub(entry.completedAt) >= r.interval {
			r.spawnLocked(ctx, key, entry, task)
		}
	case entry.state == stateInProgress:
		if now.Sub(entry.startedAt) >= stuckAfter {
			slog.Warn("fetch: refresh task stuck, cancelling and respawning", "domain", r.name, "key", key)
			metrics.RefreshStuckRespawns.Add(1)
			if entry.cancel != nil {
				entry.cancel()
			}
			r.spawnLocked(ctx, key, entry, task)
		}
	}
	entry.mu.Unlock()
}

// spawnLocked must be called with entry.mu held.
func (r *Refresher) spawnLocked(parent context.Context, key string, entry *refreshEntry, task func(context.Context) error) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
	entry.state = stateInProgress
	entry.startedAt = time.Now()
	entry.completedAt = time.Time{}
	entry.cancel = cancel
	metrics.RefreshSpawnedTotal.Add(1)

	go func() {
		err := task(taskCtx)
		cancel()
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if err != nil {
			slog.Debug("fetch: refresh task failed, entry cleared for retry", "domain", r.name, "key", key, "error", err)
			r.entries.Delete(key)
			metrics.RefreshEntriesGauge.Add(-1)
			return
		}
		entry.state = stateCompleted
		entry.completedAt = time.Now()
	}()
}

// maybeSweep drops Completed entries older than the interval once the map
// grows past sweepThreshold (spec.md §4.4 step 1, invariant 3).
func (r *Refresher) maybeSweep() {
	if r.entries.Size() <= sweepThreshold {
		return
	}
	now := time.Now()
	r.entries.Range(func(key string, entry *refreshEntry) bool {
		entry.mu.Lock()
		stale := entry.state == stateCompleted && now.Sub(entry.completedAt) >= r.interval
		entry.mu.Unlock()
		if stale {
			r.entries.Delete(key)
			metrics.RefreshEntriesGauge.Add(-1)
		}
		return true
	})
}
