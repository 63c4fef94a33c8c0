package model

import "fmt"

// WorkloadKind tags the workload variant.
type WorkloadKind string

const (
	KindDeployment  WorkloadKind = "deployment"
	KindStatefulSet WorkloadKind = "statefulset"
	KindCronJob     WorkloadKind = "cronjob"
)

// WorkloadKinds lists every supported kind in display order.
var WorkloadKinds = []WorkloadKind{KindDeployment, KindStatefulSet, KindCronJob}

// ParseWorkloadKind accepts the singular and plural lower-case forms.
func ParseWorkloadKind(s string) (WorkloadKind, error) {
	switch s {
	case "deployment", "deployments":
		return KindDeployment, nil
	case "statefulset", "statefulsets":
		return KindStatefulSet, nil
	case "cronjob", "cronjobs":
		return KindCronJob, nil
	}
	return "", fmt.Errorf("unknown workload kind %q", s)
}

// Scalable reports whether the kind has a replica count.
func (k WorkloadKind) Scalable() bool {
	return k == KindDeployment || k == KindStatefulSet
}

// EnvVar is a single name/value pair on a container.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ContainerSpec is the subset of a container template the engine reports.
// Requests and limits keep the raw quantity strings as declared.
type ContainerSpec struct {
	Name     string            `json:"name"`
	Image    string            `json:"image"`
	Requests map[string]string `json:"requests,omitempty"`
	Limits   map[string]string `json:"limits,omitempty"`
	Env      []EnvVar          `json:"env,omitempty"`
}

// ScheduleInfo is the CronJob-only part of a workload.
type ScheduleInfo struct {
	Schedule         string `json:"schedule"`
	Suspended        bool   `json:"suspended"`
	LastScheduleTime *int64 `json:"last_schedule_time,omitempty"`
	NextScheduleTime *int64 `json:"next_schedule_time,omitempty"`
	Active           int    `json:"active"`
}

// WorkloadSnapshot is an immutable point-in-time view of a Deployment,
// StatefulSet or CronJob. ReadyReplicas is nil for CronJobs; ScheduleInfo is
// set only for CronJobs.
type WorkloadSnapshot struct {
	Kind            WorkloadKind      `json:"kind"`
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace"`
	ResourceVersion string            `json:"resource_version"`
	DesiredReplicas int32             `json:"desired_replicas"`
	ReadyReplicas   *int32            `json:"ready_replicas,omitempty"`
	ContainerSpecs  []ContainerSpec   `json:"container_specs"`
	SelectorLabels  map[string]string `json:"selector_labels"`
	ScheduleInfo    *ScheduleInfo     `json:"schedule,omitempty"`

	CreationTimestamp int64 `json:"creation_timestamp"`
}

// Containers returns the pod template containers.
func (w *WorkloadSnapshot) Containers() []ContainerSpec {
	return w.ContainerSpecs
}

// Schedule returns the CronJob schedule, if any.
func (w *WorkloadSnapshot) Schedule() (ScheduleInfo, bool) {
	if w.ScheduleInfo == nil {
		return ScheduleInfo{}, false
	}
	return *w.ScheduleInfo, true
}

// Ready returns the ready replica count and whether the kind reports one.
func (w *WorkloadSnapshot) Ready() (int32, bool) {
	if w.ReadyReplicas == nil {
		return 0, false
	}
	return *w.ReadyReplicas, true
}

// Health is the three-tier workload status.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

// ResourceSummary holds the distinct declared quantities per dimension,
// joined with "+". A nil field means no container declares it.
type ResourceSummary struct {
	CPURequest    *string `json:"cpu_request,omitempty"`
	CPULimit      *string `json:"cpu_limit,omitempty"`
	MemoryRequest *string `json:"memory_request,omitempty"`
	MemoryLimit   *string `json:"memory_limit,omitempty"`
}
