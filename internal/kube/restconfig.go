package kube

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Options tunes every REST config built by this package.
type Options struct {
	QPS     float32
	Burst   int
	Timeout time.Duration
	// Wrap decorates the HTTP transport, for logging and metrics.
	Wrap func(http.RoundTripper) http.RoundTripper
	// UserAgent overrides the client-go default.
	UserAgent string
}

func (o Options) apply(cfg *rest.Config) *rest.Config {
	if o.QPS > 0 {
		cfg.QPS = o.QPS
	}
	if o.Burst > 0 {
		cfg.Burst = o.Burst
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Wrap != nil {
		cfg.Wrap(o.Wrap)
	}
	if o.UserAgent != "" {
		cfg.UserAgent = o.UserAgent
	}
	return cfg
}

// ConfigForContext builds a REST config for a named kubeconfig context.
// An empty kubeconfig path uses the default loading rules.
func ConfigForContext(kubeconfig, context string, opts Options) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules = &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules,
		&clientcmd.ConfigOverrides{CurrentContext: context},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("kube: config for context %q: %w", context, err)
	}
	return opts.apply(cfg), nil
}

// ConfigForToken builds a REST config from an explicit endpoint and bearer
// token. insecure disables server certificate verification.
func ConfigForToken(endpoint, token string, insecure bool, opts Options) (*rest.Config, error) {
	if endpoint == "" {
		return nil, errors.New("kube: endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("kube: invalid endpoint %q", endpoint)
	}
	cfg := &rest.Config{
		Host:        endpoint,
		BearerToken: token,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: insecure,
		},
	}
	return opts.apply(cfg), nil
}
