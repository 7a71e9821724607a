package workflow

import "fmt"

// Stage is one state of the deployment pipeline state machine.
type Stage string

const (
	StageIntake           Stage = "intake"
	StageContextSync      Stage = "context_sync"
	StagePreflight        Stage = "preflight"
	StagePlanDraft        Stage = "plan_draft"
	StageComplianceReview Stage = "compliance_review"
	StageDryRun           Stage = "dry_run"
	StageExecution        Stage = "execution"
	StageValidation       Stage = "validation"
	StageClosure          Stage = "closure"
	StageFailed           Stage = "failed"
	StageRollback         Stage = "rollback"
)

// transitions is the explicit edge set of the state machine. An edge absent
// here cannot be taken; there is no optimistic advancement. Every
// non-terminal stage has an edge to Failed because the user may cancel
// mid-stage.
var transitions = map[Stage][]Stage{
	StageIntake:           {StageContextSync, StageFailed},
	StageContextSync:      {StagePreflight, StageFailed},
	StagePreflight:        {StagePlanDraft, StageFailed},
	StagePlanDraft:        {StageComplianceReview, StageFailed},
	StageComplianceReview: {StageDryRun, StagePlanDraft, StageFailed},
	StageDryRun:           {StageExecution, StagePlanDraft, StageFailed},
	StageExecution:        {StageValidation, StageRollback, StageFailed},
	StageValidation:       {StageClosure, StageFailed},
	StageRollback:         {StageFailed},
	StageClosure:          {StageIntake},
	StageFailed:           {StageIntake},
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage ends a pipeline run. The session
// itself stays open for a new intent.
func (s Stage) Terminal() bool {
	return s == StageClosure || s == StageFailed
}

// Capability is one kind of work a stage is allowed to perform against the
// gateway. The mapping is static: a stage outside its capability set cannot
// issue the call at all.
type Capability uint8

const (
	// CapInspect covers read-only catalog actions (describe/list).
	CapInspect Capability = 1 << iota
	// CapPreview covers dry-run preview calls.
	CapPreview
	// CapMutate covers live effectful actions, destructive ones included.
	CapMutate
	// CapCompensate covers rollback compensation calls.
	CapCompensate
)

var stageCapabilities = map[Stage]Capability{
	StageIntake:           0,
	StageContextSync:      CapInspect,
	StagePreflight:        CapInspect,
	StagePlanDraft:        CapInspect,
	StageComplianceReview: 0,
	StageDryRun:           CapInspect | CapPreview,
	StageExecution:        CapInspect | CapMutate | CapCompensate,
	StageValidation:       CapInspect,
	StageClosure:          0,
	StageRollback:         CapCompensate,
	StageFailed:           0,
}

// Allows reports whether the stage's capability set includes cap.
func (s Stage) Allows(cap Capability) bool {
	return stageCapabilities[s]&cap != 0
}

// InvalidTransitionError reports an attempted edge outside the table.
type InvalidTransitionError struct {
	From, To Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition %s -> %s", e.From, e.To)
}
