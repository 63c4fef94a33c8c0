package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/store"
)

// Subscriber is the consumer side of a notification hub.
type Subscriber interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// Supervisor owns the mounted workers. Every delivered snapshot is written
// to the view store, and selection or resource changes trigger an
// immediate refresh of every worker.
type Supervisor struct {
	views *store.ViewStore

	mu      sync.Mutex
	workers map[string]*Worker

	followMu     sync.Mutex
	followCancel context.CancelFunc
	followDone   chan struct{}
}

// NewSupervisor creates a Supervisor publishing into views. views may be nil.
func NewSupervisor(views *store.ViewStore) *Supervisor {
	return &Supervisor{
		views:   views,
		workers: make(map[string]*Worker),
	}
}

// Mount starts w under its name, replacing (and stopping) a worker already
// mounted under that name. Mounting a running worker again is a no-op.
func (s *Supervisor) Mount(ctx context.Context, w *Worker) error {
	s.mu.Lock()
	prev := s.workers[w.name]
	s.workers[w.name] = w
	s.mu.Unlock()

	if prev != nil && prev != w {
		prev.Stop()
	}
	if w.State() == StateRunning {
		return nil
	}
	if s.views != nil {
		w.sink = s.publish
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: mount %q: %w", w.name, err)
	}
	return nil
}

// Unmount stops and removes the named worker and drops its view. It
// reports whether a worker was mounted.
func (s *Supervisor) Unmount(name string) bool {
	s.mu.Lock()
	w, ok := s.workers[name]
	delete(s.workers, name)
	s.mu.Unlock()

	if !ok {
		return false
	}
	w.Stop()
	if s.views != nil {
		s.views.Delete(name)
	}
	return true
}

// Worker returns the named worker.
func (s *Supervisor) Worker(name string) (*Worker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[name]
	return w, ok
}

// Workers returns the mounted view names, sorted.
func (s *Supervisor) Workers() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// TriggerAll requests an immediate cycle from every worker.
func (s *Supervisor) TriggerAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		w.Trigger()
	}
}

// Follow forwards notifications from sub to TriggerAll until StopAll. A
// second call replaces the first subscription.
func (s *Supervisor) Follow(sub Subscriber) {
	s.stopFollowing()

	events, cancel := sub.Subscribe(16)
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.followMu.Lock()
	s.followCancel = stop
	s.followDone = done
	s.followMu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Type {
				case notify.ContextSwitched, notify.NamespaceSwitched, notify.ResourcesChanged:
					slog.Debug("refresh triggered", "event", ev.Type, "context", ev.Context, "namespace", ev.Namespace)
					s.TriggerAll()
				}
			}
		}
	}()
}

func (s *Supervisor) stopFollowing() {
	s.followMu.Lock()
	cancel, done := s.followCancel, s.followDone
	s.followCancel, s.followDone = nil, nil
	s.followMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// StopAll stops following notifications and stops every worker. Workers
// stay mounted and can be restarted with Mount.
func (s *Supervisor) StopAll() {
	s.stopFollowing()

	s.mu.Lock()
	workers := make([]*Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}

func (s *Supervisor) publish(view string, snapshot any) {
	if _, err := s.views.Put(view, snapshot); err != nil {
		slog.Error("cannot store view snapshot", "view", view, "error", err)
	}
}
