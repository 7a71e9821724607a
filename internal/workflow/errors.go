package workflow

import (
	"errors"
	"fmt"
)

// ErrCancelled reports a user-initiated cancellation mid-pipeline.
var ErrCancelled = errors.New("pipeline cancelled by user")

// VetoError is a compliance rejection. Recoverable: the engine returns to
// plan drafting with the reason. Recurring vetoes of the same revision past
// the configured threshold escalate to a human operator.
type VetoError struct {
	Reason   string
	Revision int
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("compliance veto on plan revision %d: %s", e.Revision, e.Reason)
}

// RollbackFailureError reports that a compensating action itself failed.
// Always escalated, never retried.
type RollbackFailureError struct {
	Step string
	Err  error
}

func (e *RollbackFailureError) Error() string {
	return fmt.Sprintf("rollback of step %q failed: %v", e.Step, e.Err)
}

func (e *RollbackFailureError) Unwrap() error { return e.Err }
