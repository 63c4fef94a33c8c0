package aggregate

import (
	"sync"
	"time"

	"github.com/kubesight/kubesight/pkg/model"
)

// DefaultHistoryLength is the number of samples kept when none is configured.
const DefaultHistoryLength = 20

const (
	labelLayout = "15:04:05"
	headroom    = 1.1
)

// RollingHistory is a fixed-length FIFO of CPU/memory samples. It starts
// filled with zero samples so a chart always has the full width.
type RollingHistory struct {
	mu      sync.Mutex
	samples []model.HistorySample
}

// NewRollingHistory creates a history of n samples. n below 2 uses
// DefaultHistoryLength.
func NewRollingHistory(n int) *RollingHistory {
	if n < 2 {
		n = DefaultHistoryLength
	}
	return &RollingHistory{samples: make([]model.HistorySample, n)}
}

// Append evicts the oldest sample and appends one labelled with at.
func (h *RollingHistory) Append(cpu, mem float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	copy(h.samples, h.samples[1:])
	h.samples[len(h.samples)-1] = model.HistorySample{
		Label:       at.Format(labelLayout),
		Timestamp:   at.UnixMilli(),
		CPUValue:    cpu,
		MemoryValue: mem,
	}
}

// Reset replaces every sample with a zero sample.
func (h *RollingHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.samples)
}

// Samples returns a copy, oldest first.
func (h *RollingHistory) Samples() []model.HistorySample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HistorySample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len is the configured length.
func (h *RollingHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// NormalizeForDisplay scales samples to 0-100 against each series' current
// max plus 10% headroom. An all-zero series scales against 1.1. The result
// is recomputed from scratch on every call.
func NormalizeForDisplay(samples []model.HistorySample) model.DisplaySeries {
	cpuMax, memMax := 0.0, 0.0
	for _, s := range samples {
		cpuMax = max(cpuMax, s.CPUValue)
		memMax = max(memMax, s.MemoryValue)
	}
	if cpuMax <= 0 {
		cpuMax = 1
	}
	if memMax <= 0 {
		memMax = 1
	}
	cpuMax *= headroom
	memMax *= headroom

	points := make([]model.DisplayPoint, len(samples))
	for i, s := range samples {
		points[i] = model.DisplayPoint{
			Index:  i,
			Label:  s.Label,
			CPU:    s.CPUValue / cpuMax * 100,
			Memory: s.MemoryValue / memMax * 100,
		}
	}
	return model.DisplaySeries{
		Points:    points,
		CPUMax:    cpuMax,
		MemoryMax: memMax,
		CPUAxis:   axis(cpuMax),
		MemAxis:   axis(memMax),
	}
}

func axis(top float64) []model.AxisTick {
	ticks := make([]model.AxisTick, 0, 5)
	for _, pos := range []float64{0, 25, 50, 75, 100} {
		ticks = append(ticks, model.AxisTick{Position: pos, Value: top * pos / 100})
	}
	return ticks
}
