package convert

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/kubesight/kubesight/pkg/model"
)

// PodToSnapshot converts a Kubernetes Pod object to a model.PodSnapshot.
// ContainerUsage is left nil; it is attached from the pod metrics map.
func PodToSnapshot(pod *corev1.Pod) model.PodSnapshot {
	snap := model.PodSnapshot{
		Name:              pod.Name,
		Namespace:         pod.Namespace,
		Phase:             string(pod.Status.Phase),
		NodeName:          pod.Spec.NodeName,
		RestartCount:      RestartCount(pod.Status.ContainerStatuses),
		CreationTimestamp: pod.CreationTimestamp.UnixMilli(),
		Labels:            pod.Labels,
	}

	// Owner: immediate ownerReferences[0] only
	if len(pod.OwnerReferences) > 0 {
		snap.OwnerKind = pod.OwnerReferences[0].Kind
		snap.OwnerName = pod.OwnerReferences[0].Name
	}

	return snap
}

// RestartCount sums restarts across container statuses.
func RestartCount(statuses []corev1.ContainerStatus) int32 {
	var n int32
	for _, cs := range statuses {
		n += cs.RestartCount
	}
	return n
}
