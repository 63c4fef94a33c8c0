package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesight/kubesight/pkg/model"
)

func TestRollingHistory_FixedLengthFIFO(t *testing.T) {
	h := NewRollingHistory(3)
	require.Equal(t, 3, h.Len())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 10; i++ {
		h.Append(float64(i), float64(i*10), base.Add(time.Duration(i)*time.Second))
		assert.Equal(t, 3, h.Len())
	}

	got := h.Samples()
	require.Len(t, got, 3)
	assert.Equal(t, []float64{8, 9, 10}, []float64{got[0].CPUValue, got[1].CPUValue, got[2].CPUValue})
	assert.Equal(t, "12:00:10", got[2].Label)
}

func TestRollingHistory_StartsZeroFilled(t *testing.T) {
	h := NewRollingHistory(0)
	got := h.Samples()
	require.Len(t, got, DefaultHistoryLength)
	for _, s := range got {
		assert.Zero(t, s.CPUValue)
		assert.Empty(t, s.Label)
	}
}

func TestRollingHistory_SamplesIsACopy(t *testing.T) {
	h := NewRollingHistory(2)
	h.Append(1, 1, time.Now())
	got := h.Samples()
	got[1].CPUValue = 99

	assert.Equal(t, 1.0, h.Samples()[1].CPUValue)
}

func TestNormalizeForDisplay(t *testing.T) {
	samples := []model.HistorySample{
		{CPUValue: 0, MemoryValue: 50},
		{CPUValue: 500, MemoryValue: 100},
		{CPUValue: 1000, MemoryValue: 0},
	}

	got := NormalizeForDisplay(samples)
	require.Len(t, got.Points, 3)
	assert.InDelta(t, 1100, got.CPUMax, 1e-9)
	assert.InDelta(t, 110, got.MemoryMax, 1e-9)
	assert.InDelta(t, 100/1.1, got.Points[2].CPU, 1e-9)
	assert.InDelta(t, 100/1.1, got.Points[1].Memory, 1e-9)
	assert.Zero(t, got.Points[0].CPU)

	require.Len(t, got.CPUAxis, 5)
	assert.Equal(t, 25.0, got.CPUAxis[1].Position)
	assert.InDelta(t, 275, got.CPUAxis[1].Value, 1e-9)
	assert.InDelta(t, 1100, got.CPUAxis[4].Value, 1e-9)

	assert.Equal(t, 1000.0, samples[2].CPUValue, "input must not be rescaled in place")
}

func TestNormalizeForDisplay_AllZero(t *testing.T) {
	got := NormalizeForDisplay(make([]model.HistorySample, 4))
	assert.InDelta(t, 1.1, got.CPUMax, 1e-9)
	for _, p := range got.Points {
		assert.Zero(t, p.CPU)
		assert.Zero(t, p.Memory)
	}
}

func TestNormalizeForDisplay_RecomputesEachCall(t *testing.T) {
	h := NewRollingHistory(2)
	h.Append(100, 1, time.Now())
	first := NormalizeForDisplay(h.Samples())
	h.Append(400, 1, time.Now())
	second := NormalizeForDisplay(h.Samples())

	assert.InDelta(t, 110, first.CPUMax, 1e-9)
	assert.InDelta(t, 440, second.CPUMax, 1e-9)
}
