package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/profile"
	"github.com/kubesight/kubesight/pkg/model"
)

const (
	component = "aggregate"

	maxAlerts     = 5
	maxRecentPods = 10
)

// Source is the read side of the cluster facade the engine builds from.
type Source interface {
	CheckConnectivity(ctx context.Context) bool
	ListNodes(ctx context.Context) []model.NodeSnapshot
	ListPods(ctx context.Context, selector, ns string) []model.PodSnapshot
	ListEvents(ctx context.Context, ns string) []model.EventRecord
	ListWorkloads(ctx context.Context, kind model.WorkloadKind, ns string) []model.WorkloadSnapshot
	GetWorkload(ctx context.Context, kind model.WorkloadKind, name, ns string) *model.WorkloadSnapshot
	GetWorkloadYAML(ctx context.Context, kind model.WorkloadKind, name, ns string) (string, error)
	GetPodMetrics(ctx context.Context, ns string) model.MetricsMap
	GetNodeMetrics(ctx context.Context) model.MetricsMap
}

// Scope supplies the active context and namespace. A build reads it once
// so the snapshot header and every call it makes agree on both.
type Scope interface {
	Selection() (profile.Selection, bool)
}

// Engine builds view snapshots. It owns the dashboard's rolling history,
// so one Engine should back one dashboard.
type Engine struct {
	source    Source
	scope     Scope
	history   *RollingHistory
	metrics   *observability.Metrics
	collector *kserrors.ErrorCollector
	now       func() time.Time

	// historyCtx is the context the history samples belong to.
	historyMu  sync.Mutex
	historyCtx string
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryLength sets the rolling history length.
func WithHistoryLength(n int) Option {
	return func(e *Engine) { e.history = NewRollingHistory(n) }
}

// WithMetrics records build durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithErrorCollector surfaces active error codes on the dashboard.
func WithErrorCollector(ec *kserrors.ErrorCollector) Option {
	return func(e *Engine) { e.collector = ec }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine reading from source.
func NewEngine(source Source, scope Scope, opts ...Option) *Engine {
	e := &Engine{
		source:  source,
		scope:   scope,
		history: NewRollingHistory(DefaultHistoryLength),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns the dashboard's rolling history.
func (e *Engine) History() *RollingHistory { return e.history }

func (e *Engine) header() (ctxName, namespace string) {
	if e.scope == nil {
		return "", ""
	}
	sel, ok := e.scope.Selection()
	if !ok {
		return "", ""
	}
	return sel.Profile.Name, sel.Namespace
}

// checkScope fails a build whose selection changed while it was fetching.
// The switch itself triggers the next cycle.
func (e *Engine) checkScope(ctxName, namespace string) error {
	if c, ns := e.header(); c != ctxName || ns != namespace {
		return kserrors.New(kserrors.ErrConflict, component,
			fmt.Sprintf("selection changed from %s/%s to %s/%s during build", ctxName, namespace, c, ns))
	}
	return nil
}

// resetHistoryOnSwitch clears the history when the dashboard moves to
// another context.
func (e *Engine) resetHistoryOnSwitch(ctxName string) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	if ctxName != e.historyCtx {
		e.history.Reset()
		e.historyCtx = ctxName
	}
}

func (e *Engine) observe(view string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ViewBuildDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}
}

// Dashboard builds the cluster overview. When the connectivity probe fails
// it returns a disconnected snapshot without issuing further calls and
// without touching the history.
func (e *Engine) Dashboard(ctx context.Context) (*model.DashboardSnapshot, error) {
	start := time.Now()
	defer e.observe("dashboard", start)

	ctxName, ns := e.header()
	e.resetHistoryOnSwitch(ctxName)
	snap := &model.DashboardSnapshot{
		SnapshotID: uuid.New().String(),
		Context:    ctxName,
		Namespace:  ns,
	}

	if !e.source.CheckConnectivity(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap.GeneratedAt = e.now().UnixMilli()
		snap.Nodes = []model.NodeSnapshot{}
		snap.Alerts = []model.EventRecord{}
		snap.RecentPods = []model.PodSummary{}
		snap.History = e.history.Samples()
		snap.Chart = NormalizeForDisplay(snap.History)
		snap.ErrorCodes = e.errorCodes()
		return snap, nil
	}
	snap.Connected = true

	// Step 1: Fetch everything the overview needs concurrently.
	var (
		wg          sync.WaitGroup
		nodes       []model.NodeSnapshot
		pods        []model.PodSnapshot
		events      []model.EventRecord
		podMetrics  model.MetricsMap
		nodeMetrics model.MetricsMap
	)
	wg.Add(5)
	go func() { defer wg.Done(); nodes = e.source.ListNodes(ctx) }()
	go func() { defer wg.Done(); pods = e.source.ListPods(ctx, "", model.AllNamespaces) }()
	go func() { defer wg.Done(); events = e.source.ListEvents(ctx, ns) }()
	go func() { defer wg.Done(); podMetrics = e.source.GetPodMetrics(ctx, model.AllNamespaces) }()
	go func() { defer wg.Done(); nodeMetrics = e.source.GetNodeMetrics(ctx) }()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.checkScope(ctxName, ns); err != nil {
		return nil, err
	}

	// Step 2: Attach usage.
	AttachNodeUsage(nodes, nodeMetrics)
	AttachPodUsage(pods, podMetrics)

	// Step 3: Rollups.
	now := e.now()
	snap.GeneratedAt = now.UnixMilli()
	snap.Nodes = nodes
	snap.NodeReadiness = NodeReadiness(nodes)
	snap.TotalPods = len(pods)
	snap.RunningPods = RunningPods(pods)
	snap.Utilization = ClusterUtilization(nodes, nodeMetrics, len(pods))
	snap.Alerts = TopWarnings(events, maxAlerts)
	snap.RecentPods = RecentPods(pods, maxRecentPods, now)
	snap.MetricsPresent = len(nodeMetrics) > 0 || len(podMetrics) > 0

	// Step 4: History. Usage is summed over pods cluster-wide.
	total := SumUsage(podMetrics)
	e.history.Append(total.CPUMillicores, total.MemoryBytes, now)
	snap.History = e.history.Samples()
	snap.Chart = NormalizeForDisplay(snap.History)

	snap.ErrorCodes = e.errorCodes()
	return snap, nil
}

func (e *Engine) errorCodes() []string {
	if e.collector == nil {
		return nil
	}
	return e.collector.GetActiveErrorCodes()
}

// Workloads builds the list view for one kind. Pods are listed once for
// the namespace and matched to workloads in memory.
func (e *Engine) Workloads(ctx context.Context, kind model.WorkloadKind, ns string) (*model.WorkloadListSnapshot, error) {
	if _, err := model.ParseWorkloadKind(string(kind)); err != nil {
		return nil, kserrors.New(kserrors.ErrInvalidInput, component, err.Error())
	}
	start := time.Now()
	defer e.observe(string(kind)+"s", start)

	ctxName, active := e.header()
	if ns == "" {
		ns = active
	}

	var (
		wg         sync.WaitGroup
		workloads  []model.WorkloadSnapshot
		pods       []model.PodSnapshot
		podMetrics model.MetricsMap
	)
	wg.Add(3)
	go func() { defer wg.Done(); workloads = e.source.ListWorkloads(ctx, kind, ns) }()
	go func() { defer wg.Done(); pods = e.source.ListPods(ctx, "", ns) }()
	go func() { defer wg.Done(); podMetrics = e.source.GetPodMetrics(ctx, ns) }()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.checkScope(ctxName, active); err != nil {
		return nil, err
	}
	AttachPodUsage(pods, podMetrics)

	snap := &model.WorkloadListSnapshot{
		SnapshotID:  uuid.New().String(),
		GeneratedAt: e.now().UnixMilli(),
		Context:     ctxName,
		Namespace:   ns,
		Kind:        kind,
		Workloads:   make([]model.WorkloadView, 0, len(workloads)),
	}
	for i := range workloads {
		w := &workloads[i]
		snap.Workloads = append(snap.Workloads, BuildWorkloadView(*w, PodsForWorkload(w, pods)))
	}
	return snap, nil
}

// WorkloadDetail builds the single-workload view: status, pods, the events
// that involve the workload or one of its pods, and its YAML.
func (e *Engine) WorkloadDetail(ctx context.Context, kind model.WorkloadKind, name, ns string) (*model.WorkloadDetailSnapshot, error) {
	start := time.Now()
	defer e.observe("detail", start)

	ctxName, active := e.header()
	if ns == "" {
		ns = active
	}

	w := e.source.GetWorkload(ctx, kind, name, ns)
	if w == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, kserrors.New(kserrors.ErrNotFound, component, fmt.Sprintf("%s %s not found", kind, name))
	}

	var (
		wg         sync.WaitGroup
		pods       []model.PodSnapshot
		events     []model.EventRecord
		podMetrics model.MetricsMap
		yaml       string
	)
	wg.Add(4)
	go func() { defer wg.Done(); pods = e.source.ListPods(ctx, "", w.Namespace) }()
	go func() { defer wg.Done(); events = e.source.ListEvents(ctx, w.Namespace) }()
	go func() { defer wg.Done(); podMetrics = e.source.GetPodMetrics(ctx, w.Namespace) }()
	go func() { defer wg.Done(); yaml, _ = e.source.GetWorkloadYAML(ctx, kind, name, w.Namespace) }()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.checkScope(ctxName, active); err != nil {
		return nil, err
	}
	AttachPodUsage(pods, podMetrics)
	owned := PodsForWorkload(w, pods)

	involved := map[string]struct{}{w.Name: {}}
	for _, p := range owned {
		involved[p.Name] = struct{}{}
	}
	related := make([]model.EventRecord, 0)
	for _, ev := range events {
		if _, ok := involved[ev.InvolvedName]; ok {
			related = append(related, ev)
		}
	}

	return &model.WorkloadDetailSnapshot{
		SnapshotID:  uuid.New().String(),
		GeneratedAt: e.now().UnixMilli(),
		View:        BuildWorkloadView(*w, owned),
		Events:      related,
		YAML:        yaml,
	}, nil
}
