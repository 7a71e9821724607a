// Package deployments persists the permanent record of each pipeline run:
// what was deployed, from which repository, and how it ended. Records carry
// only a sanitized configuration snapshot and are retained for 90 days.
package deployments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RetentionWindow is how long deployment records are kept.
const RetentionWindow = 90 * 24 * time.Hour

// Status is the terminal state of a deployment.
type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Record is one deployment's permanent entry.
type Record struct {
	DeploymentID string         `json:"deployment_id" bson:"deployment_id"`
	SessionID    string         `json:"session_id" bson:"session_id"`
	RepoHash     string         `json:"repo_hash" bson:"repo_hash"`
	Target       string         `json:"target" bson:"target"`
	Status       Status         `json:"status" bson:"status"`
	Config       map[string]any `json:"config" bson:"config"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
}

// Store persists deployment records.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	List(ctx context.Context, sessionID string, limit int) ([]Record, error)
}

// RepoHash fingerprints a repository reference without storing the URL
// verbatim (it may embed tokens).
func RepoHash(repoURL, branch string) string {
	sum := sha256.Sum256([]byte(repoURL + "\x00" + branch))
	return hex.EncodeToString(sum[:])
}
