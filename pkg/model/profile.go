package model

// ProfileKind distinguishes where a connection profile came from.
type ProfileKind string

const (
	ProfileDiscovered ProfileKind = "discovered"
	ProfileCustom     ProfileKind = "custom"
)

// Namespace sentinels.
const (
	DefaultNamespace = "default"
	AllNamespaces    = "all"
)

// ProtectedNamespaces are never offered for deletion by the presentation layer.
var ProtectedNamespaces = []string{
	"default",
	"kube-system",
	"kube-public",
	"kube-node-lease",
}

// IsProtectedNamespace reports whether name is one of ProtectedNamespaces.
func IsProtectedNamespace(name string) bool {
	for _, ns := range ProtectedNamespaces {
		if ns == name {
			return true
		}
	}
	return false
}

// ConnectionProfile is a named set of credentials and endpoint identifying one cluster.
// Discovered profiles reference a kubeconfig context; custom profiles carry their
// own endpoint and bearer token.
type ConnectionProfile struct {
	Name      string      `json:"name"`
	Kind      ProfileKind `json:"kind"`
	Endpoint  string      `json:"endpoint,omitempty"`
	Token     string      `json:"-"`
	TLSVerify bool        `json:"tls_verify"`

	// Discovered only.
	Cluster        string `json:"cluster,omitempty"`
	User           string `json:"user,omitempty"`
	KubeconfigPath string `json:"kubeconfig_path,omitempty"`
	Namespace      string `json:"namespace,omitempty"`
}

// NamespaceInfo is a namespace as listed for selection.
type NamespaceInfo struct {
	Name              string `json:"name"`
	Phase             string `json:"phase"`
	Protected         bool   `json:"protected"`
	CreationTimestamp int64  `json:"creation_timestamp"`
}
