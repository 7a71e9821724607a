package gateway

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/deployd/internal/catalog"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
)

// Sentinel errors for the gateway's deterministic refusals.
var (
	// ErrConfirmationRequired blocks a destructive action invoked without
	// confirm == true. Recoverable: ask the user and retry.
	ErrConfirmationRequired = errors.New("confirmation required for destructive operation, set 'confirm' to true")

	// ErrTimeout reports a call cancelled at its wall-clock limit. Never
	// silently retried; retry policy belongs to the calling stage.
	ErrTimeout = errors.New("invocation timed out")
)

// ToolFailure wraps an error from the underlying action. Recoverable via
// re-plan or rollback. Remediation, when determinable, names the concrete
// next step for the operator.
type ToolFailure struct {
	Action      string
	Err         error
	Remediation string
}

func (e *ToolFailure) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s failed: %v (remediation: %s)", e.Action, e.Err, e.Remediation)
	}
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ToolFailure) Unwrap() error { return e.Err }

// Error codes recorded in audit events.
const (
	CodeValidation           = "validation_error"
	CodeConfirmationRequired = "confirmation_required"
	CodeUnsupportedAction    = "unsupported_action"
	CodeCredentialsMissing   = "credentials_missing"
	CodeToolFailure          = "tool_failure"
	CodeTimeout              = "timeout"
)

// ErrorCode maps an invocation error to its audit code. Unknown errors are
// tool failures.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfirmationRequired):
		return CodeConfirmationRequired
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, catalog.ErrUnknownAction):
		return CodeUnsupportedAction
	case errors.Is(err, credentials.ErrCredentialsMissing):
		return CodeCredentialsMissing
	default:
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			return CodeValidation
		}
		return CodeToolFailure
	}
}
