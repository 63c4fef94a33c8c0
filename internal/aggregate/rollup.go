// Package aggregate turns facade snapshots into the derived values the
// views show: workload health, resource summaries, utilization rollups and
// the rolling CPU/memory history.
package aggregate

import (
	"sort"
	"strings"

	"github.com/kubesight/kubesight/pkg/model"
)

// WorkloadHealth is the three-tier status used for every workload.
// ready == desired is healthy (including 0/0), more than half ready is
// degraded, anything else is critical.
func WorkloadHealth(desired, ready int32) model.Health {
	switch {
	case ready == desired:
		return model.HealthHealthy
	case float64(ready) > float64(desired)*0.5:
		return model.HealthDegraded
	default:
		return model.HealthCritical
	}
}

// AggregateResourceRequests collects, per dimension, the distinct raw
// quantity strings declared by containers and joins them with "+". A
// dimension no container declares stays nil.
func AggregateResourceRequests(containers []model.ContainerSpec) model.ResourceSummary {
	var cpuReq, cpuLim, memReq, memLim distinct
	for _, c := range containers {
		cpuReq.add(c.Requests["cpu"])
		cpuLim.add(c.Limits["cpu"])
		memReq.add(c.Requests["memory"])
		memLim.add(c.Limits["memory"])
	}
	return model.ResourceSummary{
		CPURequest:    cpuReq.join(),
		CPULimit:      cpuLim.join(),
		MemoryRequest: memReq.join(),
		MemoryLimit:   memLim.join(),
	}
}

// distinct keeps first-seen order so the joined string is stable for the
// same container list.
type distinct struct {
	seen  map[string]struct{}
	order []string
}

func (d *distinct) add(v string) {
	if v == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	d.order = append(d.order, v)
}

func (d *distinct) join() *string {
	if len(d.order) == 0 {
		return nil
	}
	s := strings.Join(d.order, "+")
	return &s
}

// ClusterUtilization sums node capacity and node usage and reports each
// ratio clamped to [0, 1]. podCount is the pods in scope measured against
// the declared pod slots.
func ClusterUtilization(nodes []model.NodeSnapshot, nodeMetrics model.MetricsMap, podCount int) model.UtilizationRollup {
	var capacity model.NodeCapacity
	for i := range nodes {
		c := nodes[i].Capacity
		capacity.CPUMillicores += c.CPUMillicores
		capacity.MemoryBytes += c.MemoryBytes
		capacity.PodSlots += c.PodSlots
		capacity.EphemeralStorageBytes += c.EphemeralStorageBytes
	}

	var usage model.Usage
	for _, u := range nodeMetrics {
		usage.CPUMillicores += u.CPUMillicores
		usage.MemoryBytes += u.MemoryBytes
		usage.EphemeralStorageBytes += u.EphemeralStorageBytes
	}

	return model.UtilizationRollup{
		CPUPercent:     ratio(usage.CPUMillicores, capacity.CPUMillicores),
		MemoryPercent:  ratio(usage.MemoryBytes, capacity.MemoryBytes),
		PodPercent:     ratio(float64(podCount), float64(capacity.PodSlots)),
		StoragePercent: ratio(usage.EphemeralStorageBytes, capacity.EphemeralStorageBytes),
	}
}

func ratio(used, capacity float64) float64 {
	if capacity <= 0 || used <= 0 {
		return 0
	}
	return min(used/capacity, 1)
}

// NodeReadiness counts the nodes whose Ready condition is True.
func NodeReadiness(nodes []model.NodeSnapshot) model.NodeReadiness {
	r := model.NodeReadiness{Total: len(nodes)}
	for i := range nodes {
		if nodes[i].Ready {
			r.Ready++
		}
	}
	return r
}

// RunningPods counts pods in phase Running.
func RunningPods(pods []model.PodSnapshot) int {
	n := 0
	for i := range pods {
		if pods[i].Phase == "Running" {
			n++
		}
	}
	return n
}

// TotalRestarts sums container restarts across pods.
func TotalRestarts(pods []model.PodSnapshot) int32 {
	var n int32
	for i := range pods {
		n += pods[i].RestartCount
	}
	return n
}

// TopWarnings returns the first n Warning events of an already
// recency-sorted list.
func TopWarnings(events []model.EventRecord, n int) []model.EventRecord {
	out := make([]model.EventRecord, 0, n)
	for _, e := range events {
		if len(out) == n {
			break
		}
		if e.Severity == model.SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// AttachPodUsage sets each pod's ContainerUsage from m. Pods missing from m
// keep a nil usage.
func AttachPodUsage(pods []model.PodSnapshot, m model.MetricsMap) {
	for i := range pods {
		pods[i].ContainerUsage = m.Lookup(model.PodKey(pods[i].Namespace, pods[i].Name))
	}
}

// AttachNodeUsage sets each node's Usage from m.
func AttachNodeUsage(nodes []model.NodeSnapshot, m model.MetricsMap) {
	for i := range nodes {
		nodes[i].Usage = m.Lookup(nodes[i].Name)
	}
}

// SumUsage adds up every entry of m.
func SumUsage(m model.MetricsMap) model.Usage {
	var total model.Usage
	for _, u := range m {
		total.CPUMillicores += u.CPUMillicores
		total.MemoryBytes += u.MemoryBytes
		total.EphemeralStorageBytes += u.EphemeralStorageBytes
	}
	return total
}

// sortPodsNewestFirst orders by creation time descending, then by name.
func sortPodsNewestFirst(pods []model.PodSnapshot) {
	sort.SliceStable(pods, func(i, j int) bool {
		if pods[i].CreationTimestamp != pods[j].CreationTimestamp {
			return pods[i].CreationTimestamp > pods[j].CreationTimestamp
		}
		return pods[i].Name < pods[j].Name
	})
}
