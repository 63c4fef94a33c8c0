package discovery

import (
	"context"
	"fmt"
	"strings"

	authorizationv1 "k8s.io/api/authorization/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	metricsGroup        = "metrics.k8s.io"
	metricsGroupVersion = "metrics.k8s.io/v1beta1"
)

// Capabilities describes optional cluster features of the active context.
type Capabilities struct {
	MetricsAPI     bool   // metrics.k8s.io serves pods and nodes
	MetricsAllowed bool   // caller may list pods.metrics.k8s.io
	ServerVersion  string // gitVersion, empty when the probe failed
	Provider       string // "aws", "gcp", "azure", "unknown"
}

// MetricsUsable reports whether usage queries can be expected to succeed.
func (c *Capabilities) MetricsUsable() bool {
	return c != nil && c.MetricsAPI && c.MetricsAllowed
}

// Detect probes the cluster behind client. Only the API group listing is
// mandatory; the version, access review and provider probes fail soft.
func Detect(ctx context.Context, client kubernetes.Interface) (*Capabilities, error) {
	disco := client.Discovery()
	caps := &Capabilities{Provider: "unknown"}

	groups, err := disco.ServerGroups()
	if err != nil {
		return nil, fmt.Errorf("discovery: failed to list server groups: %w", err)
	}
	for _, g := range groups.Groups {
		if g.Name == metricsGroup {
			caps.MetricsAPI, err = servesMetrics(client)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if caps.MetricsAPI {
		caps.MetricsAllowed, _ = CanAccess(ctx, client, metricsGroup, "pods", "list")
	}

	if v, err := disco.ServerVersion(); err == nil {
		caps.ServerVersion = v.GitVersion
	}

	nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1})
	if err == nil && len(nodes.Items) > 0 {
		caps.Provider = DetectProvider(&nodes.Items[0])
	}

	return caps, nil
}

// servesMetrics checks that both pod and node metrics resources exist.
func servesMetrics(client kubernetes.Interface) (bool, error) {
	list, err := client.Discovery().ServerResourcesForGroupVersion(metricsGroupVersion)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("discovery: resources for %s: %w", metricsGroupVersion, err)
	}
	var pods, nodes bool
	for _, r := range list.APIResources {
		switch r.Name {
		case "pods":
			pods = true
		case "nodes":
			nodes = true
		}
	}
	return pods && nodes, nil
}

// CanAccess asks the API server whether the current identity may perform verb
// on the resource, via a SelfSubjectAccessReview.
func CanAccess(ctx context.Context, client kubernetes.Interface, group, resource, verb string) (bool, error) {
	review := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Verb:     verb,
				Group:    group,
				Resource: resource,
			},
		},
	}

	result, err := client.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("discovery: access review %s/%s verb=%s: %w", group, resource, verb, err)
	}
	return result.Status.Allowed, nil
}

// Provider-specific node labels used when providerID is empty.
var providerLabels = []struct {
	label    string
	provider string
}{
	{"eks.amazonaws.com/nodegroup", "aws"},
	{"cloud.google.com/gke-nodepool", "gcp"},
	{"kubernetes.azure.com/agentpool", "azure"},
}

// DetectProvider names the cloud provider hosting node, or "unknown".
func DetectProvider(node *corev1.Node) string {
	if node == nil {
		return "unknown"
	}
	for prefix, provider := range map[string]string{"aws://": "aws", "gce://": "gcp", "azure://": "azure"} {
		if strings.HasPrefix(node.Spec.ProviderID, prefix) {
			return provider
		}
	}
	for _, pl := range providerLabels {
		if _, ok := node.Labels[pl.label]; ok {
			return pl.provider
		}
	}
	return "unknown"
}
