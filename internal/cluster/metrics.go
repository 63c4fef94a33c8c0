package cluster

import (
	"context"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesight/kubesight/internal/convert"
	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/pkg/model"
)

// ListNodes returns every node sorted by name.
func (f *Facade) ListNodes(ctx context.Context) []model.NodeSnapshot {
	t, err := f.scope("")
	if err != nil {
		f.degrade("list_nodes", "", err, "")
		return []model.NodeSnapshot{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	list, err := t.clients.Kube.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		f.degrade("list_nodes", "", err, "cannot list nodes")
		return []model.NodeSnapshot{}
	}
	f.succeed("list_nodes")

	tally := &convert.Tally{}
	out := make([]model.NodeSnapshot, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, convert.NodeToSnapshot(&list.Items[i], tally))
	}
	f.flush("list_nodes", tally)

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetPodMetrics returns pod usage keyed by model.PodKey. The map is empty on
// any failure; a missing key means the usage is unknown.
func (f *Facade) GetPodMetrics(ctx context.Context, ns string) model.MetricsMap {
	t, err := f.scope(ns)
	if err != nil {
		f.degrade("pod_metrics", ns, err, "")
		return model.MetricsMap{}
	}
	if t.clients.Metrics == nil {
		f.degrade("pod_metrics", t.namespace, kserrors.New(kserrors.ErrMetricsUnavailable, component, "metrics API not configured"), "")
		return model.MetricsMap{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	items, err := t.clients.Metrics.ListPodMetrics(ctx, t.namespace)
	f.observeMetricsAPI(start)
	if err != nil {
		f.degrade("pod_metrics", t.namespace, metricsError(err), "")
		return model.MetricsMap{}
	}
	f.succeed("pod_metrics")

	tally := &convert.Tally{}
	m := convert.PodMetricsToMap(items, tally)
	f.flush("pod_metrics", tally)
	return m
}

// GetNodeMetrics returns node usage keyed by node name, empty on any failure.
func (f *Facade) GetNodeMetrics(ctx context.Context) model.MetricsMap {
	t, err := f.scope("")
	if err != nil {
		f.degrade("node_metrics", "", err, "")
		return model.MetricsMap{}
	}
	if t.clients.Metrics == nil {
		f.degrade("node_metrics", "", kserrors.New(kserrors.ErrMetricsUnavailable, component, "metrics API not configured"), "")
		return model.MetricsMap{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	items, err := t.clients.Metrics.ListNodeMetrics(ctx)
	f.observeMetricsAPI(start)
	if err != nil {
		f.degrade("node_metrics", "", metricsError(err), "")
		return model.MetricsMap{}
	}
	f.succeed("node_metrics")

	tally := &convert.Tally{}
	m := convert.NodeMetricsToMap(items, tally)
	f.flush("node_metrics", tally)
	return m
}

// metricsError maps a metrics API failure to METRICS_UNAVAILABLE unless it
// is a connectivity or auth problem worth reporting as such.
func metricsError(err error) *kserrors.Error {
	code := kserrors.Classify(err)
	switch code {
	case kserrors.ErrUnreachable, kserrors.ErrTimeout, kserrors.ErrUnauthorized, kserrors.ErrForbidden:
	default:
		code = kserrors.ErrMetricsUnavailable
	}
	return kserrors.Wrap(err, code, component, "metrics unavailable")
}

func (f *Facade) observeMetricsAPI(start time.Time) {
	if f.metrics != nil {
		f.metrics.MetricsAPIDuration.Observe(time.Since(start).Seconds())
	}
}
