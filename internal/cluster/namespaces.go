package cluster

import (
	"context"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/validation"
	"github.com/kubesight/kubesight/pkg/model"
)

type namespaceInput struct {
	Name string `validate:"required,dns1123"`
}

// ListNamespaces returns every namespace sorted by name. Protected names are
// flagged; the facade does not prevent their deletion.
func (f *Facade) ListNamespaces(ctx context.Context) []model.NamespaceInfo {
	t, err := f.scope("")
	if err != nil {
		f.degrade("list_namespaces", "", err, "")
		return []model.NamespaceInfo{}
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	list, err := t.clients.Kube.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		f.degrade("list_namespaces", "", err, "cannot list namespaces")
		return []model.NamespaceInfo{}
	}
	f.succeed("list_namespaces")

	out := make([]model.NamespaceInfo, 0, len(list.Items))
	for i := range list.Items {
		ns := &list.Items[i]
		out = append(out, model.NamespaceInfo{
			Name:              ns.Name,
			Phase:             string(ns.Status.Phase),
			Protected:         model.IsProtectedNamespace(ns.Name),
			CreationTimestamp: ns.CreationTimestamp.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateNamespace creates a namespace.
func (f *Facade) CreateNamespace(ctx context.Context, name string) error {
	if err := validation.Struct(namespaceInput{Name: name}); err != nil {
		return kserrors.Wrap(nil, kserrors.ErrInvalidInput, component, "%s", err.Error())
	}
	t, err := f.scope("")
	if err != nil {
		return f.degrade("create_namespace", name, err, "")
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if _, err := t.clients.Kube.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		return f.degrade("create_namespace", name, err, "cannot create namespace %s", name)
	}
	f.succeed("create_namespace")
	f.changed(t, "namespaces")
	return nil
}

// DeleteNamespace deletes a namespace.
func (f *Facade) DeleteNamespace(ctx context.Context, name string) error {
	if name == "" {
		return kserrors.New(kserrors.ErrInvalidInput, component, "namespace name is required")
	}
	t, err := f.scope("")
	if err != nil {
		return f.degrade("delete_namespace", name, err, "")
	}
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	if err := t.clients.Kube.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return f.degrade("delete_namespace", name, err, "cannot delete namespace %s", name)
	}
	f.succeed("delete_namespace")
	f.changed(t, "namespaces")
	return nil
}
