package convert

import (
	corev1 "k8s.io/api/core/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/kubesight/kubesight/pkg/model"
)

// PodMetricsToMap builds a MetricsMap keyed by namespace/name, summing usage
// across every container of a pod.
func PodMetricsToMap(items []metricsv1beta1.PodMetrics, t *Tally) model.MetricsMap {
	out := make(model.MetricsMap, len(items))
	for i := range items {
		pm := &items[i]
		var u model.Usage
		for _, c := range pm.Containers {
			addUsage(&u, c.Usage, t)
		}
		out[model.PodKey(pm.Namespace, pm.Name)] = u
	}
	return out
}

// NodeMetricsToMap builds a MetricsMap keyed by node name.
func NodeMetricsToMap(items []metricsv1beta1.NodeMetrics, t *Tally) model.MetricsMap {
	out := make(model.MetricsMap, len(items))
	for i := range items {
		var u model.Usage
		addUsage(&u, items[i].Usage, t)
		out[items[i].Name] = u
	}
	return out
}

func addUsage(u *model.Usage, rl corev1.ResourceList, t *Tally) {
	u.CPUMillicores += quantityCPU(rl, corev1.ResourceCPU, t)
	u.MemoryBytes += quantityBytes(rl, corev1.ResourceMemory, t)
	u.EphemeralStorageBytes += quantityBytes(rl, corev1.ResourceEphemeralStorage, t)
}
