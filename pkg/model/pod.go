package model

// Usage is a measured resource usage tuple in canonical units.
type Usage struct {
	CPUMillicores         float64 `json:"cpu_millicores"`
	MemoryBytes           float64 `json:"memory_bytes"`
	EphemeralStorageBytes float64 `json:"ephemeral_storage_bytes,omitempty"`
}

// PodSnapshot is an immutable point-in-time view of a pod.
// ContainerUsage is nil when the metrics API has no entry for the pod,
// which is distinct from a zero usage.
type PodSnapshot struct {
	Name              string            `json:"name"`
	Namespace         string            `json:"namespace"`
	Phase             string            `json:"phase"`
	OwnerKind         string            `json:"owner_kind,omitempty"`
	OwnerName         string            `json:"owner_name,omitempty"`
	NodeName          string            `json:"node_name,omitempty"`
	RestartCount      int32             `json:"restart_count"`
	CreationTimestamp int64             `json:"creation_timestamp"`
	Labels            map[string]string `json:"labels,omitempty"`
	ContainerUsage    *Usage            `json:"container_usage,omitempty"`
}

// PodSummary is the recent-pods row shown on the dashboard.
type PodSummary struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Phase     string `json:"phase"`
	Age       string `json:"age"`
	IsError   bool   `json:"is_error"`
}
