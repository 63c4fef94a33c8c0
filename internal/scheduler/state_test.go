package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStateInitial(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := NewStateMachine(newMockClock(start))

	assert.Equal(t, StateStopped, sm.State())
	assert.Equal(t, "", sm.Reason())
	assert.Equal(t, start, sm.Since())
}

func TestStateTransition(t *testing.T) {
	clk := newMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sm := NewStateMachine(clk)

	clk.Advance(time.Minute)
	assert.True(t, sm.TransitionTo(StateRunning, "started"))
	assert.Equal(t, StateRunning, sm.State())
	assert.Equal(t, "started", sm.Reason())
	assert.Equal(t, clk.Now(), sm.Since())
}

func TestStateTransition_SameStateKeepsSince(t *testing.T) {
	clk := newMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sm := NewStateMachine(clk)
	sm.TransitionTo(StateRunning, "started")
	since := sm.Since()

	clk.Advance(time.Hour)
	assert.False(t, sm.TransitionTo(StateRunning, "still running"))
	assert.Equal(t, since, sm.Since())
	assert.Equal(t, "still running", sm.Reason())
}
