package model

// NodeCapacity is the declared capacity of a node in canonical units.
type NodeCapacity struct {
	CPUMillicores         float64 `json:"cpu_millicores"`
	MemoryBytes           float64 `json:"memory_bytes"`
	PodSlots              int64   `json:"pod_slots"`
	EphemeralStorageBytes float64 `json:"ephemeral_storage_bytes"`
}

// NodeSnapshot is an immutable point-in-time view of a node.
type NodeSnapshot struct {
	Name              string       `json:"name"`
	Ready             bool         `json:"ready"`
	Unschedulable     bool         `json:"unschedulable"`
	KubeletVersion    string       `json:"kubelet_version,omitempty"`
	Capacity          NodeCapacity `json:"capacity"`
	Usage             *Usage       `json:"usage,omitempty"`
	CreationTimestamp int64        `json:"creation_timestamp"`
}

// MetricsMap maps an entity key to its usage. Pods are keyed by
// "namespace/name", nodes by name. A missing key means usage is unknown.
type MetricsMap map[string]Usage

// PodKey builds the MetricsMap key for a pod.
func PodKey(namespace, name string) string {
	return namespace + "/" + name
}

// Lookup returns a copy of the usage for key, or nil if absent.
func (m MetricsMap) Lookup(key string) *Usage {
	u, ok := m[key]
	if !ok {
		return nil
	}
	return &u
}
