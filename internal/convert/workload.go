package convert

import (
	"time"

	"github.com/robfig/cron/v3"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubesight/kubesight/pkg/model"
)

// DeploymentToSnapshot converts a Deployment. Replicas defaults to 1 when unset.
func DeploymentToSnapshot(dep *appsv1.Deployment) model.WorkloadSnapshot {
	ready := dep.Status.ReadyReplicas
	return model.WorkloadSnapshot{
		Kind:              model.KindDeployment,
		Name:              dep.Name,
		Namespace:         dep.Namespace,
		ResourceVersion:   dep.ResourceVersion,
		DesiredReplicas:   replicasOrDefault(dep.Spec.Replicas),
		ReadyReplicas:     &ready,
		ContainerSpecs:    ExtractContainerSpecs(dep.Spec.Template.Spec.Containers),
		SelectorLabels:    selectorLabels(dep.Spec.Selector),
		CreationTimestamp: dep.CreationTimestamp.UnixMilli(),
	}
}

// StatefulSetToSnapshot converts a StatefulSet. Replicas defaults to 1 when unset.
func StatefulSetToSnapshot(ss *appsv1.StatefulSet) model.WorkloadSnapshot {
	ready := ss.Status.ReadyReplicas
	return model.WorkloadSnapshot{
		Kind:              model.KindStatefulSet,
		Name:              ss.Name,
		Namespace:         ss.Namespace,
		ResourceVersion:   ss.ResourceVersion,
		DesiredReplicas:   replicasOrDefault(ss.Spec.Replicas),
		ReadyReplicas:     &ready,
		ContainerSpecs:    ExtractContainerSpecs(ss.Spec.Template.Spec.Containers),
		SelectorLabels:    selectorLabels(ss.Spec.Selector),
		CreationTimestamp: ss.CreationTimestamp.UnixMilli(),
	}
}

// CronJobToSnapshot converts a CronJob. now anchors the next-run computation;
// NextScheduleTime is nil when suspended or when the schedule does not parse.
func CronJobToSnapshot(cj *batchv1.CronJob, now time.Time) model.WorkloadSnapshot {
	suspended := cj.Spec.Suspend != nil && *cj.Spec.Suspend

	info := &model.ScheduleInfo{
		Schedule:         cj.Spec.Schedule,
		Suspended:        suspended,
		LastScheduleTime: timePtrMillis(cj.Status.LastScheduleTime),
		Active:           len(cj.Status.Active),
	}
	if !suspended {
		if sched, err := cron.ParseStandard(cj.Spec.Schedule); err == nil {
			next := sched.Next(now).UnixMilli()
			info.NextScheduleTime = &next
		}
	}

	return model.WorkloadSnapshot{
		Kind:              model.KindCronJob,
		Name:              cj.Name,
		Namespace:         cj.Namespace,
		ResourceVersion:   cj.ResourceVersion,
		DesiredReplicas:   replicasOrDefault(cj.Spec.JobTemplate.Spec.Parallelism),
		ContainerSpecs:    ExtractContainerSpecs(cj.Spec.JobTemplate.Spec.Template.Spec.Containers),
		SelectorLabels:    selectorLabels(cj.Spec.JobTemplate.Spec.Selector),
		ScheduleInfo:      info,
		CreationTimestamp: cj.CreationTimestamp.UnixMilli(),
	}
}

// ExtractContainerSpecs keeps the raw request/limit strings as declared.
func ExtractContainerSpecs(containers []corev1.Container) []model.ContainerSpec {
	if len(containers) == 0 {
		return nil
	}
	out := make([]model.ContainerSpec, len(containers))
	for i, c := range containers {
		out[i] = model.ContainerSpec{
			Name:     c.Name,
			Image:    c.Image,
			Requests: rawQuantities(c.Resources.Requests),
			Limits:   rawQuantities(c.Resources.Limits),
			Env:      envVars(c.Env),
		}
	}
	return out
}

func rawQuantities(rl corev1.ResourceList) map[string]string {
	if len(rl) == 0 {
		return nil
	}
	out := make(map[string]string, len(rl))
	for name, q := range rl {
		out[string(name)] = q.String()
	}
	return out
}

func envVars(env []corev1.EnvVar) []model.EnvVar {
	if len(env) == 0 {
		return nil
	}
	out := make([]model.EnvVar, len(env))
	for i, e := range env {
		out[i] = model.EnvVar{Name: e.Name, Value: e.Value}
	}
	return out
}

func selectorLabels(sel *metav1.LabelSelector) map[string]string {
	if sel == nil {
		return nil
	}
	return sel.MatchLabels
}

func replicasOrDefault(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}

func timePtrMillis(t *metav1.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
