package cluster

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesight/kubesight/internal/convert"
	"github.com/kubesight/kubesight/pkg/model"
)

// ListEvents returns the events of ns, newest first by each record's first
// available timestamp.
func (f *Facade) ListEvents(ctx context.Context, ns string) []model.EventRecord {
	t, err := f.scope(ns)
	if err != nil {
		f.degrade("list_events", ns, err, "")
		return []model.EventRecord{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	list, err := t.clients.Kube.CoreV1().Events(t.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		f.degrade("list_events", t.namespace, err, "cannot list events")
		return []model.EventRecord{}
	}
	f.succeed("list_events")

	out := make([]model.EventRecord, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, convert.EventToRecord(&list.Items[i]))
	}
	convert.SortEventsByRecency(out)
	return out
}
