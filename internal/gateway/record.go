package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/deployd/internal/secrets"
)

// Outcome classifies a completed invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeDenied  Outcome = "denied"
)

// ToolInvocation is the permanent record of one gateway call. Created per
// call and never mutated after completion.
type ToolInvocation struct {
	ID            string         `json:"id" bson:"invocation_id"`
	SessionID     string         `json:"session_id" bson:"session_id"`
	Action        string         `json:"action" bson:"action"`
	Params        map[string]any `json:"params" bson:"params"`
	Confirm       bool           `json:"confirm" bson:"confirm"`
	CorrelationID string         `json:"correlation_id" bson:"correlation_id"`
	StartedAt     time.Time      `json:"started_at" bson:"started_at"`
	CompletedAt   time.Time      `json:"completed_at" bson:"completed_at"`
	Outcome       Outcome        `json:"outcome" bson:"outcome"`
	ErrorCode     string         `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Error         string         `json:"error,omitempty" bson:"error,omitempty"`
}

// InvocationLog stores completed invocation records.
type InvocationLog interface {
	Append(ctx context.Context, inv ToolInvocation) error
}

// MemoryLog is the in-process invocation log.
type MemoryLog struct {
	mu      sync.Mutex
	records []ToolInvocation
}

// NewMemoryLog creates an empty invocation log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, inv ToolInvocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, inv)
	return nil
}

func (l *MemoryLog) BySession(sessionID string) []ToolInvocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ToolInvocation
	for _, rec := range l.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out
}

var _ InvocationLog = (*MemoryLog)(nil)

var sensitiveKeyTokens = []string{"key", "secret", "token", "password", "credential"}

// SanitizeParams masks values of credential-shaped parameter keys before a
// record is persisted or logged. Resource identifiers like key_name and
// bucket keys stay readable; anything that could carry secret material does
// not.
func SanitizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			out[k] = secrets.Mask
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	// Identifier params that merely name resources.
	switch lower {
	case "key_name", "key_names", "object_name", "bucket_name":
		return false
	}
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
