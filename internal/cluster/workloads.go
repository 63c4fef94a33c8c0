package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/yaml"

	"github.com/kubesight/kubesight/internal/convert"
	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/pkg/model"
)

// RestartAnnotation is rewritten on the pod template to trigger a rolling restart.
const RestartAnnotation = "kubectl.kubernetes.io/restartedAt"

func unknownKind(kind model.WorkloadKind) *kserrors.Error {
	return kserrors.New(kserrors.ErrInvalidInput, component, fmt.Sprintf("unsupported workload kind %q", kind))
}

// ListWorkloads returns the workloads of kind in ns, sorted by name.
func (f *Facade) ListWorkloads(ctx context.Context, kind model.WorkloadKind, ns string) []model.WorkloadSnapshot {
	op := "list_" + string(kind) + "s"
	t, err := f.scope(ns)
	if err != nil {
		f.degrade(op, ns, err, "")
		return []model.WorkloadSnapshot{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	var out []model.WorkloadSnapshot
	switch kind {
	case model.KindDeployment:
		list, err := t.clients.Kube.AppsV1().Deployments(t.namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			f.degrade(op, t.namespace, err, "cannot list deployments")
			return []model.WorkloadSnapshot{}
		}
		out = make([]model.WorkloadSnapshot, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, convert.DeploymentToSnapshot(&list.Items[i]))
		}
	case model.KindStatefulSet:
		list, err := t.clients.Kube.AppsV1().StatefulSets(t.namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			f.degrade(op, t.namespace, err, "cannot list statefulsets")
			return []model.WorkloadSnapshot{}
		}
		out = make([]model.WorkloadSnapshot, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, convert.StatefulSetToSnapshot(&list.Items[i]))
		}
	case model.KindCronJob:
		list, err := t.clients.Kube.BatchV1().CronJobs(t.namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			f.degrade(op, t.namespace, err, "cannot list cronjobs")
			return []model.WorkloadSnapshot{}
		}
		now := f.now()
		out = make([]model.WorkloadSnapshot, 0, len(list.Items))
		for i := range list.Items {
			out = append(out, convert.CronJobToSnapshot(&list.Items[i], now))
		}
	default:
		f.degrade(op, t.namespace, unknownKind(kind), "")
		return []model.WorkloadSnapshot{}
	}
	f.succeed(op)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetWorkload returns one workload, or nil when it cannot be read.
func (f *Facade) GetWorkload(ctx context.Context, kind model.WorkloadKind, name, ns string) *model.WorkloadSnapshot {
	op := "get_" + string(kind)
	t, err := f.scope(ns)
	if err != nil {
		f.degrade(op, ns, err, "")
		return nil
	}
	obj, err := f.getObject(ctx, t, kind, name)
	if err != nil {
		f.degrade(op, t.namespace, err, "cannot read %s %s", kind, name)
		return nil
	}
	f.succeed(op)

	var snap model.WorkloadSnapshot
	switch o := obj.(type) {
	case *appsv1.Deployment:
		snap = convert.DeploymentToSnapshot(o)
	case *appsv1.StatefulSet:
		snap = convert.StatefulSetToSnapshot(o)
	case *batchv1.CronJob:
		snap = convert.CronJobToSnapshot(o, f.now())
	}
	return &snap
}

// getObject reads the typed API object for kind.
func (f *Facade) getObject(ctx context.Context, t target, kind model.WorkloadKind, name string) (runtime.Object, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	switch kind {
	case model.KindDeployment:
		return t.clients.Kube.AppsV1().Deployments(t.namespace).Get(ctx, name, metav1.GetOptions{})
	case model.KindStatefulSet:
		return t.clients.Kube.AppsV1().StatefulSets(t.namespace).Get(ctx, name, metav1.GetOptions{})
	case model.KindCronJob:
		return t.clients.Kube.BatchV1().CronJobs(t.namespace).Get(ctx, name, metav1.GetOptions{})
	default:
		return nil, unknownKind(kind)
	}
}

// patch sends a strategic merge patch to a scalable workload.
func (f *Facade) patch(ctx context.Context, t target, kind model.WorkloadKind, name string, body []byte) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	var err error
	switch kind {
	case model.KindDeployment:
		_, err = t.clients.Kube.AppsV1().Deployments(t.namespace).Patch(ctx, name, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	case model.KindStatefulSet:
		_, err = t.clients.Kube.AppsV1().StatefulSets(t.namespace).Patch(ctx, name, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	default:
		err = unknownKind(kind)
	}
	return err
}

// ScaleWorkload sets spec.replicas with a partial update. CronJobs cannot
// be scaled.
func (f *Facade) ScaleWorkload(ctx context.Context, kind model.WorkloadKind, name string, replicas int32, ns string) error {
	if !kind.Scalable() {
		return kserrors.New(kserrors.ErrInvalidInput, component, fmt.Sprintf("%s cannot be scaled", kind))
	}
	if replicas < 0 {
		return kserrors.New(kserrors.ErrInvalidInput, component, "replicas must not be negative")
	}
	t, err := f.scope(ns)
	if err != nil {
		return f.degrade("scale", ns, err, "")
	}

	body, _ := json.Marshal(map[string]any{"spec": map[string]any{"replicas": replicas}})
	if err := f.patch(ctx, t, kind, name, body); err != nil {
		return f.degrade("scale", t.namespace, err, "cannot scale %s %s", kind, name)
	}
	f.succeed("scale")
	f.changed(t, string(kind)+"s")
	return nil
}

// RestartWorkload rewrites the restart annotation on the pod template to the
// current UTC time, which triggers a rolling restart. Nothing else changes.
func (f *Facade) RestartWorkload(ctx context.Context, kind model.WorkloadKind, name, ns string) error {
	if !kind.Scalable() {
		return kserrors.New(kserrors.ErrInvalidInput, component, fmt.Sprintf("%s cannot be restarted", kind))
	}
	t, err := f.scope(ns)
	if err != nil {
		return f.degrade("restart", ns, err, "")
	}

	body, _ := json.Marshal(map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						RestartAnnotation: f.now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	})
	if err := f.patch(ctx, t, kind, name, body); err != nil {
		return f.degrade("restart", t.namespace, err, "cannot restart %s %s", kind, name)
	}
	f.succeed("restart")
	f.changed(t, string(kind)+"s")
	return nil
}

// DeleteWorkload deletes a workload and lets the garbage collector remove
// its dependents in the background.
func (f *Facade) DeleteWorkload(ctx context.Context, kind model.WorkloadKind, name, ns string) error {
	t, err := f.scope(ns)
	if err != nil {
		return f.degrade("delete", ns, err, "")
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	policy := metav1.DeletePropagationBackground
	opts := metav1.DeleteOptions{PropagationPolicy: &policy}
	switch kind {
	case model.KindDeployment:
		err = t.clients.Kube.AppsV1().Deployments(t.namespace).Delete(ctx, name, opts)
	case model.KindStatefulSet:
		err = t.clients.Kube.AppsV1().StatefulSets(t.namespace).Delete(ctx, name, opts)
	case model.KindCronJob:
		err = t.clients.Kube.BatchV1().CronJobs(t.namespace).Delete(ctx, name, opts)
	default:
		err = unknownKind(kind)
	}
	if err != nil {
		return f.degrade("delete", t.namespace, err, "cannot delete %s %s", kind, name)
	}
	f.succeed("delete")
	f.changed(t, string(kind)+"s")
	return nil
}

// GetWorkloadYAML renders the live object as YAML without managed fields.
func (f *Facade) GetWorkloadYAML(ctx context.Context, kind model.WorkloadKind, name, ns string) (string, error) {
	t, err := f.scope(ns)
	if err != nil {
		return "", f.degrade("yaml", ns, err, "")
	}
	obj, err := f.getObject(ctx, t, kind, name)
	if err != nil {
		return "", f.degrade("yaml", t.namespace, err, "cannot read %s %s", kind, name)
	}

	switch o := obj.(type) {
	case *appsv1.Deployment:
		o.ManagedFields = nil
		o.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}
	case *appsv1.StatefulSet:
		o.ManagedFields = nil
		o.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"}
	case *batchv1.CronJob:
		o.ManagedFields = nil
		o.TypeMeta = metav1.TypeMeta{APIVersion: "batch/v1", Kind: "CronJob"}
	}

	out, err := yaml.Marshal(obj)
	if err != nil {
		return "", f.degrade("yaml", t.namespace, err, "cannot render %s %s", kind, name)
	}
	f.succeed("yaml")
	return string(out), nil
}
