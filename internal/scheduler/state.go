package scheduler

import (
	"sync"
	"time"

	"github.com/kubesight/kubesight/internal/errors"
)

// State is the lifecycle state of a refresh worker.
type State string

// Worker lifecycle states.
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// StateMachine tracks a worker's lifecycle state, the reason for the last
// transition and when it happened.
type StateMachine struct {
	mu     sync.RWMutex
	state  State
	reason string
	since  time.Time
	clock  errors.Clock
}

// NewStateMachine creates a StateMachine starting in StateStopped.
func NewStateMachine(clock errors.Clock) *StateMachine {
	return &StateMachine{
		state: StateStopped,
		clock: clock,
		since: clock.Now(),
	}
}

// State returns the current state.
func (sm *StateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Reason returns the human-readable reason for the current state.
func (sm *StateMachine) Reason() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reason
}

// Since returns when the current state was entered.
func (sm *StateMachine) Since() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.since
}

// TransitionTo sets the state with a reason. It reports whether the state
// actually changed.
func (sm *StateMachine) TransitionTo(state State, reason string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.reason = reason
	if sm.state == state {
		return false
	}
	sm.state = state
	sm.since = sm.clock.Now()
	return true
}
