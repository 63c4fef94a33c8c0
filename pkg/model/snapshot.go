package model

// UtilizationRollup holds cluster-wide usage/capacity ratios, each in [0, 1].
type UtilizationRollup struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	PodPercent     float64 `json:"pod_percent"`
	StoragePercent float64 `json:"storage_percent"`
}

// HistorySample is one point of the rolling CPU/memory history.
type HistorySample struct {
	Label       string  `json:"label"`
	Timestamp   int64   `json:"timestamp"`
	CPUValue    float64 `json:"cpu_value"`
	MemoryValue float64 `json:"memory_value"`
}

// DisplayPoint is a history sample scaled to 0-100 for charting.
type DisplayPoint struct {
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

// AxisTick labels a chart position (25, 50, 75, 100) with the raw value it represents.
type AxisTick struct {
	Position float64 `json:"position"`
	Value    float64 `json:"value"`
}

// DisplaySeries is the chart-ready form of a rolling history. It is derived
// on every call and never written back to the history.
type DisplaySeries struct {
	Points    []DisplayPoint `json:"points"`
	CPUMax    float64        `json:"cpu_max"`
	MemoryMax float64        `json:"memory_max"`
	CPUAxis   []AxisTick     `json:"cpu_axis"`
	MemAxis   []AxisTick     `json:"memory_axis"`
}

// NodeReadiness counts ready nodes.
type NodeReadiness struct {
	Ready int `json:"ready"`
	Total int `json:"total"`
}

// DashboardSnapshot is everything the cluster overview needs for one refresh.
type DashboardSnapshot struct {
	SnapshotID  string `json:"snapshot_id"`
	GeneratedAt int64  `json:"generated_at"`
	Context     string `json:"context"`
	Namespace   string `json:"namespace"`
	Connected   bool   `json:"connected"`

	Nodes          []NodeSnapshot    `json:"nodes"`
	NodeReadiness  NodeReadiness     `json:"node_readiness"`
	TotalPods      int               `json:"total_pods"`
	RunningPods    int               `json:"running_pods"`
	Utilization    UtilizationRollup `json:"utilization"`
	History        []HistorySample   `json:"history"`
	Chart          DisplaySeries     `json:"chart"`
	Alerts         []EventRecord     `json:"alerts"`
	RecentPods     []PodSummary      `json:"recent_pods"`
	MetricsPresent bool              `json:"metrics_present"`
	ErrorCodes     []string          `json:"error_codes,omitempty"`
}

// WorkloadView is one row of a workload list with its derived status.
type WorkloadView struct {
	Workload      WorkloadSnapshot `json:"workload"`
	Health        Health           `json:"health"`
	Resources     ResourceSummary  `json:"resources"`
	Pods          []PodSnapshot    `json:"pods"`
	TotalRestarts int32            `json:"total_restarts"`
}

// WorkloadListSnapshot is the workload list for one kind in one namespace.
type WorkloadListSnapshot struct {
	SnapshotID  string         `json:"snapshot_id"`
	GeneratedAt int64          `json:"generated_at"`
	Context     string         `json:"context"`
	Namespace   string         `json:"namespace"`
	Kind        WorkloadKind   `json:"kind"`
	Workloads   []WorkloadView `json:"workloads"`
}

// WorkloadDetailSnapshot is a single workload with its pods, events and YAML.
type WorkloadDetailSnapshot struct {
	SnapshotID  string        `json:"snapshot_id"`
	GeneratedAt int64         `json:"generated_at"`
	View        WorkloadView  `json:"view"`
	Events      []EventRecord `json:"events"`
	YAML        string        `json:"yaml,omitempty"`
}
