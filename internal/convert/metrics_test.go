package convert

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/kubesight/kubesight/pkg/model"
)

func usage(cpu, mem string) corev1.ResourceList {
	return corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse(cpu),
		corev1.ResourceMemory: resource.MustParse(mem),
	}
}

func TestPodMetricsToMap_SumsContainers(t *testing.T) {
	items := []metricsv1beta1.PodMetrics{
		{
			ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "shop"},
			Containers: []metricsv1beta1.ContainerMetrics{
				{Name: "app", Usage: usage("200m", "64Mi")},
				{Name: "sidecar", Usage: usage("50m", "16Mi")},
			},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "idle", Namespace: "shop"},
			Containers: []metricsv1beta1.ContainerMetrics{
				{Name: "app", Usage: usage("0", "0")},
			},
		},
	}

	m := PodMetricsToMap(items, nil)

	u := m.Lookup(model.PodKey("shop", "web-1"))
	if u == nil {
		t.Fatal("expected usage for shop/web-1")
	}
	if u.CPUMillicores != 250 {
		t.Errorf("CPUMillicores = %v, want 250", u.CPUMillicores)
	}
	if u.MemoryBytes != 80*1048576 {
		t.Errorf("MemoryBytes = %v", u.MemoryBytes)
	}

	idle := m.Lookup(model.PodKey("shop", "idle"))
	if idle == nil || idle.CPUMillicores != 0 {
		t.Errorf("measured zero must be present, got %v", idle)
	}
	if m.Lookup(model.PodKey("shop", "missing")) != nil {
		t.Error("unknown pod must be nil")
	}
}

func TestNodeMetricsToMap(t *testing.T) {
	items := []metricsv1beta1.NodeMetrics{
		{ObjectMeta: metav1.ObjectMeta{Name: "worker-1"}, Usage: usage("1500m", "2Gi")},
	}
	m := NodeMetricsToMap(items, nil)
	u := m.Lookup("worker-1")
	if u == nil || u.CPUMillicores != 1500 || u.MemoryBytes != 2*1073741824 {
		t.Errorf("unexpected usage %+v", u)
	}
}

func TestPodToSnapshot(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "web-1",
			Namespace: "shop",
			Labels:    map[string]string{"app": "web"},
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "ReplicaSet", Name: "web-7d9f"},
				{Kind: "Other", Name: "ignored"},
			},
		},
		Spec: corev1.PodSpec{NodeName: "worker-1"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{RestartCount: 2},
				{RestartCount: 3},
			},
		},
	}

	snap := PodToSnapshot(pod)

	if snap.OwnerKind != "ReplicaSet" || snap.OwnerName != "web-7d9f" {
		t.Errorf("owner = %s/%s", snap.OwnerKind, snap.OwnerName)
	}
	if snap.RestartCount != 5 {
		t.Errorf("RestartCount = %d, want 5", snap.RestartCount)
	}
	if snap.Phase != "Running" || snap.NodeName != "worker-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.ContainerUsage != nil {
		t.Error("ContainerUsage must be nil until metrics are attached")
	}
}
