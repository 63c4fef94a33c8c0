package convert

import (
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/kubesight/kubesight/pkg/model"
)

// EventToRecord converts a core Event. The record's timestamp is the first
// available of lastTimestamp, eventTime and creationTimestamp.
func EventToRecord(ev *corev1.Event) model.EventRecord {
	severity := model.SeverityNormal
	if ev.Type == corev1.EventTypeWarning {
		severity = model.SeverityWarning
	}
	return model.EventRecord{
		Name:          ev.Name,
		Namespace:     ev.Namespace,
		InvolvedKind:  ev.InvolvedObject.Kind,
		InvolvedName:  ev.InvolvedObject.Name,
		Reason:        ev.Reason,
		Message:       ev.Message,
		Severity:      severity,
		Count:         ev.Count,
		LastTimestamp: EventTimestamp(ev).UnixMilli(),
	}
}

// EventTimestamp applies the first-available-timestamp policy to one event.
func EventTimestamp(ev *corev1.Event) time.Time {
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp.Time
	}
	if !ev.EventTime.IsZero() {
		return ev.EventTime.Time
	}
	return ev.CreationTimestamp.Time
}

// SortEventsByRecency orders records newest first. Ties keep their input order.
func SortEventsByRecency(records []model.EventRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastTimestamp > records[j].LastTimestamp
	})
}
