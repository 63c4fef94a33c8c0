package cluster

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/validation"
	"github.com/kubesight/kubesight/pkg/model"
)

// WorkloadSpec is the small parameter set a workload is created from.
// Env applies to the single container, in order.
type WorkloadSpec struct {
	Name     string `validate:"required,dns1123"`
	Image    string `validate:"required"`
	Replicas int32  `validate:"gte=0"`
	Selector string `validate:"required,labelpair"`
	Env      []model.EnvVar
	Schedule string `validate:"omitempty,cron"`
}

// WorkloadUpdate changes the image and env of container 0. An empty Image
// keeps the current one. A non-empty ResourceVersion must match the live
// object or the update fails with CONFLICT.
type WorkloadUpdate struct {
	Name            string `validate:"required"`
	Image           string
	Env             []model.EnvVar
	ResourceVersion string
}

// CreateWorkload validates spec and creates the workload. Nothing is sent to
// the API when validation fails.
func (f *Facade) CreateWorkload(ctx context.Context, kind model.WorkloadKind, spec WorkloadSpec, ns string) error {
	if err := validateSpec(kind, spec); err != nil {
		return err
	}
	t, err := f.scope(ns)
	if err != nil {
		return f.degrade("create", ns, err, "")
	}
	key, value, _ := validation.ParseLabelPair(spec.Selector)
	labels := map[string]string{key: value}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	switch kind {
	case model.KindDeployment:
		_, err = t.clients.Kube.AppsV1().Deployments(t.namespace).Create(ctx, buildDeployment(spec, t.namespace, labels), metav1.CreateOptions{})
	case model.KindStatefulSet:
		_, err = t.clients.Kube.AppsV1().StatefulSets(t.namespace).Create(ctx, buildStatefulSet(spec, t.namespace, labels), metav1.CreateOptions{})
	case model.KindCronJob:
		_, err = t.clients.Kube.BatchV1().CronJobs(t.namespace).Create(ctx, buildCronJob(spec, t.namespace, labels), metav1.CreateOptions{})
	}
	if err != nil {
		return f.degrade("create", t.namespace, err, "cannot create %s %s", kind, spec.Name)
	}
	f.succeed("create")
	f.changed(t, string(kind)+"s")
	return nil
}

func validateSpec(kind model.WorkloadKind, spec WorkloadSpec) error {
	if _, err := model.ParseWorkloadKind(string(kind)); err != nil {
		return unknownKind(kind)
	}
	if err := validation.Struct(spec); err != nil {
		return kserrors.Wrap(nil, kserrors.ErrInvalidInput, component, "%s", err.Error())
	}
	if kind == model.KindCronJob && spec.Schedule == "" {
		return kserrors.New(kserrors.ErrInvalidInput, component, "Schedule is required")
	}
	return nil
}

func podTemplate(spec WorkloadSpec, labels map[string]string) corev1.PodTemplateSpec {
	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{Labels: labels},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:  spec.Name,
				Image: spec.Image,
				Env:   toEnv(spec.Env),
			}},
		},
	}
}

func buildDeployment(spec WorkloadSpec, ns string, labels map[string]string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: spec.Name, Namespace: ns, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(spec.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: podTemplate(spec, labels),
		},
	}
}

func buildStatefulSet(spec WorkloadSpec, ns string, labels map[string]string) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: spec.Name, Namespace: ns, Labels: labels},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    ptr.To(spec.Replicas),
			ServiceName: spec.Name,
			Selector:    &metav1.LabelSelector{MatchLabels: labels},
			Template:    podTemplate(spec, labels),
		},
	}
}

func buildCronJob(spec WorkloadSpec, ns string, labels map[string]string) *batchv1.CronJob {
	tmpl := podTemplate(spec, labels)
	tmpl.Spec.RestartPolicy = corev1.RestartPolicyOnFailure
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: spec.Name, Namespace: ns, Labels: labels},
		Spec: batchv1.CronJobSpec{
			Schedule: spec.Schedule,
			JobTemplate: batchv1.JobTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       batchv1.JobSpec{Template: tmpl},
			},
		},
	}
}

func toEnv(env []model.EnvVar) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	out := make([]corev1.EnvVar, len(env))
	for i, e := range env {
		out[i] = corev1.EnvVar{Name: e.Name, Value: e.Value}
	}
	return out
}

// UpdateWorkload reads the live object, changes image and env of container
// 0 and writes the whole object back with the resourceVersion it read, so a
// concurrent write surfaces as CONFLICT instead of being overwritten.
func (f *Facade) UpdateWorkload(ctx context.Context, kind model.WorkloadKind, upd WorkloadUpdate, ns string) error {
	if err := validation.Struct(upd); err != nil {
		return kserrors.Wrap(nil, kserrors.ErrInvalidInput, component, "%s", err.Error())
	}
	t, err := f.scope(ns)
	if err != nil {
		return f.degrade("update", ns, err, "")
	}

	obj, err := f.getObject(ctx, t, kind, upd.Name)
	if err != nil {
		return f.degrade("update", t.namespace, err, "cannot read %s %s", kind, upd.Name)
	}

	var meta *metav1.ObjectMeta
	var pod *corev1.PodSpec
	switch o := obj.(type) {
	case *appsv1.Deployment:
		meta, pod = &o.ObjectMeta, &o.Spec.Template.Spec
	case *appsv1.StatefulSet:
		meta, pod = &o.ObjectMeta, &o.Spec.Template.Spec
	case *batchv1.CronJob:
		meta, pod = &o.ObjectMeta, &o.Spec.JobTemplate.Spec.Template.Spec
	}

	if upd.ResourceVersion != "" && upd.ResourceVersion != meta.ResourceVersion {
		conflict := kserrors.New(kserrors.ErrConflict, component,
			fmt.Sprintf("%s %s was modified (resourceVersion %s, expected %s); reload and retry",
				kind, upd.Name, meta.ResourceVersion, upd.ResourceVersion))
		return f.degrade("update", t.namespace, conflict, "")
	}
	if len(pod.Containers) == 0 {
		return kserrors.New(kserrors.ErrInvalidInput, component, fmt.Sprintf("%s %s has no containers", kind, upd.Name))
	}

	if upd.Image != "" {
		pod.Containers[0].Image = upd.Image
	}
	pod.Containers[0].Env = toEnv(upd.Env)

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	switch o := obj.(type) {
	case *appsv1.Deployment:
		_, err = t.clients.Kube.AppsV1().Deployments(t.namespace).Update(ctx, o, metav1.UpdateOptions{})
	case *appsv1.StatefulSet:
		_, err = t.clients.Kube.AppsV1().StatefulSets(t.namespace).Update(ctx, o, metav1.UpdateOptions{})
	case *batchv1.CronJob:
		_, err = t.clients.Kube.BatchV1().CronJobs(t.namespace).Update(ctx, o, metav1.UpdateOptions{})
	}
	if err != nil {
		return f.degrade("update", t.namespace, err, "cannot update %s %s", kind, upd.Name)
	}
	f.succeed("update")
	f.changed(t, string(kind)+"s")
	return nil
}
