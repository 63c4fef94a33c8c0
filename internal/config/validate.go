package config

import (
	"fmt"
	"time"
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.ProfileStorePath == "" {
		return fmt.Errorf("config: KUBESIGHT_PROFILE_STORE must not be empty")
	}

	if c.InitialNamespace == "" {
		return fmt.Errorf("config: KUBESIGHT_NAMESPACE must not be empty")
	}

	if c.RefreshInterval < time.Second {
		return fmt.Errorf("config: RefreshInterval must be >= 1s, got %v", c.RefreshInterval)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RequestTimeout must be > 0, got %v", c.RequestTimeout)
	}

	if c.HistoryLength < 2 {
		return fmt.Errorf("config: HistoryLength must be >= 2, got %d", c.HistoryLength)
	}

	if c.QPS <= 0 {
		return fmt.Errorf("config: QPS must be > 0, got %v", c.QPS)
	}

	if c.Burst < 1 {
		return fmt.Errorf("config: Burst must be >= 1, got %d", c.Burst)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTPPort must be 0-65535, got %d", c.HTTPPort)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: KUBESIGHT_LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel)
	}

	return nil
}
