package aggregate

import (
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/kubesight/kubesight/pkg/model"
)

// RecentPods returns the n newest pods as dashboard rows. A pod is flagged
// as an error when its phase is neither Running nor Succeeded.
func RecentPods(pods []model.PodSnapshot, n int, now time.Time) []model.PodSummary {
	sorted := make([]model.PodSnapshot, len(pods))
	copy(sorted, pods)
	sortPodsNewestFirst(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]model.PodSummary, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, model.PodSummary{
			Name:      p.Name,
			Namespace: p.Namespace,
			Phase:     p.Phase,
			Age:       FormatAge(p.CreationTimestamp, now),
			IsError:   p.Phase != "Running" && p.Phase != "Succeeded",
		})
	}
	return out
}

// FormatAge renders the time since createdMillis as whole days, else whole
// hours once past one hour, else whole minutes. A zero timestamp is
// "Unknown".
func FormatAge(createdMillis int64, now time.Time) string {
	if createdMillis == 0 {
		return "Unknown"
	}
	d := now.Sub(time.UnixMilli(createdMillis))
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d"
	case d > time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + "h"
	default:
		return strconv.Itoa(int(d/time.Minute)) + "m"
	}
}

// PodsForWorkload picks the pods that belong to w out of a namespace's pod
// list. Deployments and StatefulSets match on their selector labels;
// CronJob pods are matched through their Job owner.
func PodsForWorkload(w *model.WorkloadSnapshot, pods []model.PodSnapshot) []model.PodSnapshot {
	out := []model.PodSnapshot{}
	if w.Kind == model.KindCronJob {
		for _, p := range pods {
			if p.Namespace == w.Namespace && p.OwnerKind == "Job" && scheduledBy(p.OwnerName, w.Name) {
				out = append(out, p)
			}
		}
		return out
	}

	if len(w.SelectorLabels) == 0 {
		return out
	}
	sel := labels.SelectorFromSet(w.SelectorLabels)
	for _, p := range pods {
		if p.Namespace == w.Namespace && sel.Matches(labels.Set(p.Labels)) {
			out = append(out, p)
		}
	}
	return out
}

// scheduledBy reports whether job was created by cronJob. The CronJob
// controller names its Jobs "<cronjob>-<scheduled time in minutes>".
func scheduledBy(job, cronJob string) bool {
	suffix, ok := strings.CutPrefix(job, cronJob+"-")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildWorkloadView derives the status row of w from its pods. CronJobs
// have no replica count and are always reported healthy.
func BuildWorkloadView(w model.WorkloadSnapshot, pods []model.PodSnapshot) model.WorkloadView {
	health := model.HealthHealthy
	if ready, ok := w.Ready(); ok {
		health = WorkloadHealth(w.DesiredReplicas, ready)
	}
	return model.WorkloadView{
		Workload:      w,
		Health:        health,
		Resources:     AggregateResourceRequests(w.Containers()),
		Pods:          pods,
		TotalRestarts: TotalRestarts(pods),
	}
}
