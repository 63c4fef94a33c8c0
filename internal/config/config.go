package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/client-go/tools/clientcmd"
)

// Config holds all engine configuration values.
type Config struct {
	InstanceID string

	// Connection
	Kubeconfig       string // KUBECONFIG, default: ~/.kube/config
	ProfileStorePath string // KUBESIGHT_PROFILE_STORE, default: ~/.kubesight/profiles.yaml
	InitialContext   string // KUBESIGHT_CONTEXT, default: kubeconfig current-context
	InitialNamespace string // KUBESIGHT_NAMESPACE, default: "default"

	// Refresh
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	HistoryLength   int

	// Client-side rate limits for the orchestration API.
	QPS   float32
	Burst int

	HTTPPort       int
	DebugEndpoints bool // KUBESIGHT_DEBUG_ENDPOINTS, default: false; enables pprof on the HTTP port
	LogLevel       string
}

// Load reads configuration from environment variables and returns a Config
// with defaults applied for any unset values.
func Load() Config {
	home, _ := os.UserHomeDir()

	cfg := Config{
		InstanceID:       os.Getenv("KUBESIGHT_INSTANCE_ID"),
		Kubeconfig:       envOrDefault("KUBECONFIG", clientcmd.RecommendedHomeFile),
		ProfileStorePath: envOrDefault("KUBESIGHT_PROFILE_STORE", filepath.Join(home, ".kubesight", "profiles.yaml")),
		InitialContext:   os.Getenv("KUBESIGHT_CONTEXT"),
		InitialNamespace: envOrDefault("KUBESIGHT_NAMESPACE", "default"),
		RefreshInterval:  parseDuration("KUBESIGHT_REFRESH_INTERVAL", 5*time.Second),
		RequestTimeout:   parseDuration("KUBESIGHT_REQUEST_TIMEOUT", 10*time.Second),
		HistoryLength:    parseInt("KUBESIGHT_HISTORY_LENGTH", 20),
		QPS:              float32(parseFloat("KUBESIGHT_QPS", 50)),
		Burst:            parseInt("KUBESIGHT_BURST", 100),
		HTTPPort:         parseInt("KUBESIGHT_HTTP_PORT", 8080),
		DebugEndpoints:   parseBool("KUBESIGHT_DEBUG_ENDPOINTS", false),
		LogLevel:         strings.ToLower(envOrDefault("KUBESIGHT_LOG_LEVEL", "info")),
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.New().String()
	}

	return cfg
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
