// Package cluster is the single point of contact with the orchestration API.
//
// Every operation is scoped by the active selection of a SelectionSource and
// bounded by a per-call timeout. Failures never escape as panics: lists
// degrade to empty slices, gets to nil, mutations to a non-nil *errors.Error
// whose message can be shown to a user as-is. Each degraded call is logged,
// counted and reported to the ErrorCollector.
package cluster

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesight/kubesight/internal/convert"
	"github.com/kubesight/kubesight/internal/discovery"
	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/profile"
	"github.com/kubesight/kubesight/pkg/model"
)

const (
	component      = "cluster"
	defaultTimeout = 10 * time.Second

	maxCachedCapabilities = 8
)

// SelectionSource supplies the active context and namespace.
type SelectionSource interface {
	Selection() (profile.Selection, bool)
}

// Facade issues orchestration API calls on behalf of the engine.
type Facade struct {
	sel       SelectionSource
	timeout   time.Duration
	metrics   *observability.Metrics
	collector *kserrors.ErrorCollector
	publisher notify.Publisher
	now       func() time.Time

	capsMu sync.Mutex
	caps   map[*kube.Clients]*discovery.Capabilities

	reachable atomic.Bool
	probedAt  atomic.Int64
}

// Option configures a Facade.
type Option func(*Facade)

// WithTimeout bounds every API call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMetrics enables facade metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Facade) { f.metrics = m }
}

// WithErrorCollector records degraded calls in ec.
func WithErrorCollector(ec *kserrors.ErrorCollector) Option {
	return func(f *Facade) { f.collector = ec }
}

// WithPublisher announces successful mutations as ResourcesChanged.
func WithPublisher(p notify.Publisher) Option {
	return func(f *Facade) { f.publisher = p }
}

// WithClock overrides the wall clock used for restart stamps and schedules.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

// New creates a Facade reading the active selection from sel.
func New(sel SelectionSource, opts ...Option) *Facade {
	f := &Facade{
		sel:     sel,
		timeout: defaultTimeout,
		now:     time.Now,
		caps:    make(map[*kube.Clients]*discovery.Capabilities),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// target is one call's resolved scope.
type target struct {
	clients   *kube.Clients
	context   string
	namespace string
}

// scope resolves ns against the active selection: "" is the active
// namespace and model.AllNamespaces is cluster-wide.
func (f *Facade) scope(ns string) (target, error) {
	sel, ok := f.sel.Selection()
	if !ok || sel.Clients == nil {
		return target{}, kserrors.New(kserrors.ErrNotConnected, component, "no active context")
	}
	switch ns {
	case "":
		ns = sel.Namespace
	case model.AllNamespaces:
		ns = metav1.NamespaceAll
	}
	return target{clients: sel.Clients, context: sel.Profile.Name, namespace: ns}, nil
}

func (f *Facade) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, f.timeout)
}

// degrade classifies err, logs and records it, and returns it as an
// *errors.Error carrying a user-facing message.
func (f *Facade) degrade(op, namespace string, err error, format string, args ...any) *kserrors.Error {
	code := kserrors.Classify(err)
	var kerr *kserrors.Error
	if !stderrors.As(err, &kerr) {
		if format == "" {
			kerr = kserrors.New(code, component, err.Error())
			kerr.Err = err
		} else {
			kerr = kserrors.Wrap(err, code, component, format, args...)
		}
	}
	kerr.Component = component + "." + op

	slog.Warn("cluster call degraded",
		"op", op,
		"namespace", namespace,
		"code", code,
		"error", err,
	)
	if f.metrics != nil {
		f.metrics.DegradedCallsTotal.WithLabelValues(op, string(code)).Inc()
	}
	if f.collector != nil {
		f.collector.Report(*kerr)
	}
	return kerr
}

func (f *Facade) succeed(op string) {
	if f.collector != nil {
		f.collector.ResolveComponent(component + "." + op)
	}
}

func (f *Facade) changed(t target, resource string) {
	if f.publisher != nil {
		f.publisher.Publish(notify.Event{
			Type:      notify.ResourcesChanged,
			Context:   t.context,
			Namespace: t.namespace,
			Resource:  resource,
		})
	}
}

// flush counts and logs the parse warnings gathered during one call.
func (f *Facade) flush(op string, t *convert.Tally) {
	for _, w := range t.Warnings() {
		slog.Debug("unparseable quantity", "op", op, "kind", w.Kind, "input", w.Input)
		if f.metrics != nil {
			f.metrics.ParseWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
		}
	}
}

// CheckConnectivity lists at most one node. Any failure means unreachable.
func (f *Facade) CheckConnectivity(ctx context.Context) bool {
	t, err := f.scope("")
	if err != nil {
		f.recordProbe(false)
		return false
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	_, err = t.clients.Kube.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		f.degrade("connectivity", "", err, "cluster %s is unreachable", t.context)
		f.recordProbe(false)
		return false
	}
	f.succeed("connectivity")
	f.recordProbe(true)
	return true
}

func (f *Facade) recordProbe(ok bool) {
	f.reachable.Store(ok)
	f.probedAt.Store(f.now().UnixMilli())
	if f.metrics != nil {
		v := 0.0
		if ok {
			v = 1
		}
		f.metrics.ClusterReachable.Set(v)
	}
}

// LastProbe returns the result and time of the most recent connectivity
// probe. The time is zero before the first probe.
func (f *Facade) LastProbe() (bool, time.Time) {
	ms := f.probedAt.Load()
	if ms == 0 {
		return false, time.Time{}
	}
	return f.reachable.Load(), time.UnixMilli(ms)
}

// Capabilities probes optional features of the active context once per
// client set and caches the result. It returns nil when the probe fails.
func (f *Facade) Capabilities(ctx context.Context) *discovery.Capabilities {
	t, err := f.scope("")
	if err != nil {
		return nil
	}

	f.capsMu.Lock()
	defer f.capsMu.Unlock()
	if caps, ok := f.caps[t.clients]; ok {
		return caps
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	caps, err := discovery.Detect(ctx, t.clients.Kube)
	if err != nil {
		f.degrade("capabilities", "", err, "cannot probe cluster capabilities")
		return nil
	}
	f.succeed("capabilities")
	if len(f.caps) >= maxCachedCapabilities {
		clear(f.caps)
	}
	f.caps[t.clients] = caps
	return caps
}
