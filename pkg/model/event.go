package model

// Severity is the event type reported by the control plane.
type Severity string

const (
	SeverityNormal  Severity = "Normal"
	SeverityWarning Severity = "Warning"
)

// EventRecord is a read-only view of a cluster event. LastTimestamp holds the
// first available of lastTimestamp, eventTime and creationTimestamp (UnixMilli).
type EventRecord struct {
	Name          string   `json:"name"`
	Namespace     string   `json:"namespace"`
	InvolvedKind  string   `json:"involved_kind"`
	InvolvedName  string   `json:"involved_name"`
	Reason        string   `json:"reason,omitempty"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	Count         int32    `json:"count,omitempty"`
	LastTimestamp int64    `json:"last_timestamp"`
}

// Summary renders the event the way the alerts panel shows it.
func (e EventRecord) Summary() string {
	return e.InvolvedKind + " '" + e.InvolvedName + "': " + e.Message
}
