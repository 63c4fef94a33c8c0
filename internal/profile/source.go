package profile

import (
	"fmt"
	"sort"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/kubesight/kubesight/pkg/model"
)

// DiscoveredSource lists the profiles defined by the external orchestration
// configuration, plus the name it marks as current.
type DiscoveredSource interface {
	Discover() (profiles []model.ConnectionProfile, current string, err error)
}

// KubeconfigSource discovers profiles from kubeconfig contexts.
type KubeconfigSource struct {
	// Path is an explicit kubeconfig file. Empty uses the default loading
	// rules ($KUBECONFIG, then ~/.kube/config).
	Path string
}

// Discover returns one profile per context, sorted by name.
func (s KubeconfigSource) Discover() ([]model.ConnectionProfile, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if s.Path != "" {
		rules = &clientcmd.ClientConfigLoadingRules{ExplicitPath: s.Path}
	}
	raw, err := rules.Load()
	if err != nil {
		return nil, "", fmt.Errorf("kubeconfig: %w", err)
	}
	return profilesFromConfig(raw, s.Path), raw.CurrentContext, nil
}

func profilesFromConfig(cfg *clientcmdapi.Config, path string) []model.ConnectionProfile {
	out := make([]model.ConnectionProfile, 0, len(cfg.Contexts))
	for name, ctx := range cfg.Contexts {
		p := model.ConnectionProfile{
			Name:           name,
			Kind:           model.ProfileDiscovered,
			TLSVerify:      true,
			Cluster:        ctx.Cluster,
			User:           ctx.AuthInfo,
			KubeconfigPath: path,
			Namespace:      ctx.Namespace,
		}
		if cluster, ok := cfg.Clusters[ctx.Cluster]; ok {
			p.Endpoint = cluster.Server
			p.TLSVerify = !cluster.InsecureSkipTLSVerify
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
