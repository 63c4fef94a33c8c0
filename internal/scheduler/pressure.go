package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"
)

// MemStatsReader abstracts runtime.ReadMemStats for tests.
type MemStatsReader interface {
	ReadMemStats(m *runtime.MemStats)
}

type runtimeMemStats struct{}

func (runtimeMemStats) ReadMemStats(m *runtime.MemStats) { runtime.ReadMemStats(m) }

// MemoryGuard polls process memory against the soft limit and calls relieve
// with the usage ratio whenever it exceeds threshold. Without a limit the
// guard never fires.
type MemoryGuard struct {
	threshold float64
	interval  time.Duration
	relieve   func(ratio float64)
	stats     MemStatsReader
	limit     func() int64
}

// GuardOption configures a MemoryGuard.
type GuardOption func(*MemoryGuard)

// WithMemStats replaces the runtime stats reader.
func WithMemStats(r MemStatsReader) GuardOption {
	return func(g *MemoryGuard) { g.stats = r }
}

// WithMemoryLimit replaces the GOMEMLIMIT lookup.
func WithMemoryLimit(limit func() int64) GuardOption {
	return func(g *MemoryGuard) { g.limit = limit }
}

// NewMemoryGuard creates a guard. threshold is a fraction of the limit.
func NewMemoryGuard(threshold float64, interval time.Duration, relieve func(ratio float64), opts ...GuardOption) *MemoryGuard {
	g := &MemoryGuard{
		threshold: threshold,
		interval:  interval,
		relieve:   relieve,
		stats:     runtimeMemStats{},
		limit:     func() int64 { return debug.SetMemoryLimit(-1) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run polls until ctx is done.
func (g *MemoryGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ratio, over := g.Check(); over {
				slog.Warn("memory pressure detected", "ratio", ratio, "threshold", g.threshold)
				g.relieve(ratio)
			}
		}
	}
}

// Check returns the current usage ratio and whether it is above threshold.
func (g *MemoryGuard) Check() (float64, bool) {
	limit := g.limit()
	if limit <= 0 {
		return 0, false
	}

	var ms runtime.MemStats
	g.stats.ReadMemStats(&ms)

	ratio := float64(ms.Sys-ms.HeapReleased) / float64(limit)
	return ratio, ratio > g.threshold
}
