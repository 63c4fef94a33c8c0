package convert

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/kubesight/kubesight/pkg/model"
)

// NodeToSnapshot converts a Kubernetes Node object to a model.NodeSnapshot.
// Pure function: no side effects, no time.Now(), no external calls.
// Usage is left nil; it is attached from the node metrics map by the engine.
func NodeToSnapshot(node *corev1.Node, t *Tally) model.NodeSnapshot {
	capacity := node.Status.Capacity
	return model.NodeSnapshot{
		Name:           node.Name,
		Ready:          NodeReady(node.Status.Conditions),
		Unschedulable:  node.Spec.Unschedulable,
		KubeletVersion: node.Status.NodeInfo.KubeletVersion,
		Capacity: model.NodeCapacity{
			CPUMillicores:         quantityCPU(capacity, corev1.ResourceCPU, t),
			MemoryBytes:           quantityBytes(capacity, corev1.ResourceMemory, t),
			PodSlots:              quantityInteger(capacity, corev1.ResourcePods, t),
			EphemeralStorageBytes: quantityBytes(capacity, corev1.ResourceEphemeralStorage, t),
		},
		CreationTimestamp: node.CreationTimestamp.UnixMilli(),
	}
}

// NodeReady reports whether the node has a Ready condition with status True.
// The first Ready condition wins.
func NodeReady(conditions []corev1.NodeCondition) bool {
	for _, c := range conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func quantityCPU(rl corev1.ResourceList, name corev1.ResourceName, t *Tally) float64 {
	q, ok := rl[name]
	if !ok {
		return 0
	}
	return CPUMillis(q, t)
}

func quantityBytes(rl corev1.ResourceList, name corev1.ResourceName, t *Tally) float64 {
	q, ok := rl[name]
	if !ok {
		return 0
	}
	return Bytes(q, t)
}

func quantityInteger(rl corev1.ResourceList, name corev1.ResourceName, t *Tally) int64 {
	q, ok := rl[name]
	if !ok {
		return 0
	}
	return t.Integer(q.String())
}
