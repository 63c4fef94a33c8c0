package profile

import (
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/pkg/model"
)

// ClientFactory builds API clients for a profile.
type ClientFactory interface {
	ForProfile(p model.ConnectionProfile) (*kube.Clients, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(p model.ConnectionProfile) (*kube.Clients, error)

// ForProfile calls f.
func (f ClientFactoryFunc) ForProfile(p model.ConnectionProfile) (*kube.Clients, error) {
	return f(p)
}

// KubeFactory builds real clients: discovered profiles through their
// kubeconfig context, custom profiles from endpoint and token.
type KubeFactory struct {
	Kubeconfig string
	Options    kube.Options
}

// ForProfile implements ClientFactory.
func (f KubeFactory) ForProfile(p model.ConnectionProfile) (*kube.Clients, error) {
	if p.Kind == model.ProfileCustom {
		cfg, err := kube.ConfigForToken(p.Endpoint, p.Token, !p.TLSVerify, f.Options)
		if err != nil {
			return nil, err
		}
		return kube.NewClients(cfg)
	}

	path := p.KubeconfigPath
	if path == "" {
		path = f.Kubeconfig
	}
	cfg, err := kube.ConfigForContext(path, p.Name, f.Options)
	if err != nil {
		return nil, err
	}
	return kube.NewClients(cfg)
}
