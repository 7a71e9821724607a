// Package audit provides the append-only event stream for pipeline
// activity. Every gateway invocation and every stage transition emits
// exactly one event, correlated by session ID and numbered by a per-session
// monotonic sequence.
//
// Events are published to NATS subjects of the form
// {prefix}.{session_id}.{status}, so alerting consumers can subscribe to a
// filtered view (for example "deployd.audit.*.failure") without replaying
// the whole stream.
package audit

import "time"

// Status classifies the outcome an event records.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
	StatusDenied  Status = "denied"
	StatusVeto    Status = "veto"
)

// Event is one audit record. Immutable once emitted.
type Event struct {
	SessionID     string    `json:"session_id"`
	Seq           uint64    `json:"seq"`
	Stage         string    `json:"stage"`
	Tool          string    `json:"tool,omitempty"`
	Status        Status    `json:"status"`
	LatencyMS     int64     `json:"latency_ms"`
	ErrorCode     string    `json:"error_code,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
