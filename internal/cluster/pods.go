package cluster

import (
	"context"
	"io"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesight/kubesight/internal/convert"
	"github.com/kubesight/kubesight/pkg/model"
)

// maxLogBytes caps a single log fetch.
const maxLogBytes = 2 << 20

// LogOptions narrows a log fetch. Zero values fetch the default container's
// full current log.
type LogOptions struct {
	Container string
	TailLines int64
	Previous  bool
}

// SelectorString canonicalizes a label mapping to "k1=v1,k2=v2" with keys
// sorted, so the same mapping always yields the same string.
func SelectorString(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

// ListPods lists pods in ns matching a pre-joined label selector. An empty
// selector matches every pod.
func (f *Facade) ListPods(ctx context.Context, selector, ns string) []model.PodSnapshot {
	t, err := f.scope(ns)
	if err != nil {
		f.degrade("list_pods", ns, err, "")
		return []model.PodSnapshot{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	list, err := t.clients.Kube.CoreV1().Pods(t.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		f.degrade("list_pods", t.namespace, err, "cannot list pods")
		return []model.PodSnapshot{}
	}
	f.succeed("list_pods")

	out := make([]model.PodSnapshot, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, convert.PodToSnapshot(&list.Items[i]))
	}
	return out
}

// ListPodsMatching lists pods whose labels contain every pair in labels.
func (f *Facade) ListPodsMatching(ctx context.Context, labels map[string]string, ns string) []model.PodSnapshot {
	return f.ListPods(ctx, SelectorString(labels), ns)
}

// GetPodLogs returns raw log text. Failures come back as a readable error
// line instead of an error value so callers can render the result directly.
func (f *Facade) GetPodLogs(ctx context.Context, pod, ns string, opts LogOptions) string {
	t, err := f.scope(ns)
	if err != nil {
		return "Error fetching logs: " + f.degrade("logs", ns, err, "").Error()
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	logOpts := &corev1.PodLogOptions{Container: opts.Container, Previous: opts.Previous}
	if opts.TailLines > 0 {
		logOpts.TailLines = &opts.TailLines
	}

	stream, err := t.clients.Kube.CoreV1().Pods(t.namespace).GetLogs(pod, logOpts).Stream(ctx)
	if err != nil {
		return "Error fetching logs: " + f.degrade("logs", t.namespace, err, "cannot fetch logs for %s", pod).Error()
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxLogBytes))
	if err != nil {
		return "Error fetching logs: " + f.degrade("logs", t.namespace, err, "cannot read logs for %s", pod).Error()
	}
	f.succeed("logs")
	return string(data)
}
