// Package scheduler runs one periodic refresh worker per mounted view.
//
// A Worker builds a snapshot on a fixed interval, plus once immediately on
// start and once per Trigger. Cycles never overlap. A failed cycle is
// logged and counted and the previous snapshot stays visible. Stop waits
// for the loop to exit, and nothing is delivered after it returns.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/observability"
)

// DefaultInterval is the refresh cadence when none is given.
const DefaultInterval = 5 * time.Second

// BuildFunc produces one snapshot. A returned error means "no update this
// cycle".
type BuildFunc func(ctx context.Context) (any, error)

// DeliverFunc observes every delivered snapshot.
type DeliverFunc func(view string, snapshot any)

// Worker refreshes one view.
type Worker struct {
	name      string
	build     BuildFunc
	interval  time.Duration
	state     *StateMachine
	metrics   *observability.Metrics
	onDeliver DeliverFunc
	sink      DeliverFunc

	trigger chan struct{}

	// lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	subMu   sync.Mutex
	subs    map[uint64]chan any
	nextSub uint64

	latest atomic.Pointer[delivery]
	cycles atomic.Uint64
}

type delivery struct {
	snapshot any
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMetrics records cycle outcomes and worker state.
func WithMetrics(m *observability.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithClock sets the clock used for state transitions.
func WithClock(c errors.Clock) WorkerOption {
	return func(w *Worker) { w.state = NewStateMachine(c) }
}

// OnDeliver registers fn to run, on the worker goroutine, after each
// delivered snapshot.
func OnDeliver(fn DeliverFunc) WorkerOption {
	return func(w *Worker) { w.onDeliver = fn }
}

// NewWorker creates a stopped worker. A non-positive interval uses
// DefaultInterval.
func NewWorker(name string, build BuildFunc, interval time.Duration, opts ...WorkerOption) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Worker{
		name:     name,
		build:    build,
		interval: interval,
		state:    NewStateMachine(errors.RealClock{}),
		trigger:  make(chan struct{}, 1),
		subs:     make(map[uint64]chan any),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the view name.
func (w *Worker) Name() string { return w.name }

// State returns the lifecycle state.
func (w *Worker) State() State { return w.state.State() }

// Cycles returns how many cycles have completed, successful or not.
func (w *Worker) Cycles() uint64 { return w.cycles.Load() }

// Start begins the refresh loop. The first cycle runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("scheduler: worker %q already running", w.name)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.setState(StateRunning, "started")

	go w.run(loopCtx, w.done)
	slog.Info("refresh worker started", "view", w.name, "interval", w.interval)
	return nil
}

// Stop cancels the loop and waits for it to exit. An in-flight cycle
// finishes but its result is discarded. Stop is idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil
	w.setState(StateStopped, "stopped")
	slog.Info("refresh worker stopped", "view", w.name)
}

// Trigger requests an immediate out-of-band cycle. Requests made while a
// cycle is running coalesce into one follow-up cycle.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Latest returns the most recently delivered snapshot, or nil.
func (w *Worker) Latest() any {
	if d := w.latest.Load(); d != nil {
		return d.snapshot
	}
	return nil
}

// Subscribe returns a channel receiving each delivered snapshot. A slow
// subscriber only ever sees the newest one. The returned func cancels the
// subscription and closes the channel.
func (w *Worker) Subscribe() (<-chan any, func()) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	id := w.nextSub
	w.nextSub++
	ch := make(chan any, 1)
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.subMu.Lock()
			defer w.subMu.Unlock()
			if c, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(c)
			}
		})
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.trigger:
		}
		w.cycle(ctx)
	}
}

func (w *Worker) cycle(ctx context.Context) {
	start := time.Now()
	snap, err := w.safeBuild(ctx)
	w.cycles.Add(1)

	if ctx.Err() != nil {
		w.count("discarded")
		return
	}
	if err != nil {
		w.count("error")
		slog.Error("refresh cycle failed", "view", w.name, "error", err)
		return
	}
	if snap == nil {
		w.count("empty")
		return
	}
	w.deliver(snap)
	w.count("ok")
	slog.Debug("refresh cycle completed", "view", w.name, "duration", time.Since(start).Round(time.Millisecond))
}

// safeBuild turns a panicking build into a failed cycle so the loop keeps
// running.
func (w *Worker) safeBuild(ctx context.Context) (snap any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: build panicked: %v", r)
		}
	}()
	return w.build(ctx)
}

func (w *Worker) deliver(snap any) {
	w.latest.Store(&delivery{snapshot: snap})

	w.subMu.Lock()
	for _, ch := range w.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale value so the subscriber sees the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	w.subMu.Unlock()

	if w.onDeliver != nil {
		w.onDeliver(w.name, snap)
	}
	if w.sink != nil {
		w.sink(w.name, snap)
	}
}

func (w *Worker) count(status string) {
	if w.metrics != nil {
		w.metrics.ViewCyclesTotal.WithLabelValues(w.name, status).Inc()
	}
}

func (w *Worker) setState(s State, reason string) {
	w.state.TransitionTo(s, reason)
	if w.metrics == nil {
		return
	}
	for _, st := range []State{StateStopped, StateRunning} {
		v := 0.0
		if st == s {
			v = 1
		}
		w.metrics.WorkerState.WithLabelValues(w.name, string(st)).Set(v)
	}
}
