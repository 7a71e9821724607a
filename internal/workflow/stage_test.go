package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Stage
		to   Stage
		ok   bool
	}{
		{"intake to context sync", StageIntake, StageContextSync, true},
		{"compliance veto edge", StageComplianceReview, StagePlanDraft, true},
		{"dry run rollback edge", StageDryRun, StagePlanDraft, true},
		{"execution to rollback", StageExecution, StageRollback, true},
		{"closure reopens", StageClosure, StageIntake, true},
		{"cancellation from plan draft", StagePlanDraft, StageFailed, true},
		{"no skipping compliance", StagePlanDraft, StageDryRun, false},
		{"no skipping dry run", StageComplianceReview, StageExecution, false},
		{"no direct closure", StageExecution, StageClosure, false},
		{"rollback cannot resume", StageRollback, StageExecution, false},
		{"failed only reopens", StageFailed, StageExecution, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageClosure.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageExecution.Terminal())
	assert.False(t, StageIntake.Terminal())
}

func TestStageCapabilities(t *testing.T) {
	assert.True(t, StageExecution.Allows(CapMutate))
	assert.True(t, StageExecution.Allows(CapCompensate))
	assert.True(t, StageDryRun.Allows(CapPreview))
	assert.True(t, StageRollback.Allows(CapCompensate))

	assert.False(t, StageDryRun.Allows(CapMutate))
	assert.False(t, StagePlanDraft.Allows(CapMutate))
	assert.False(t, StageComplianceReview.Allows(CapInspect))
	assert.False(t, StageIntake.Allows(CapInspect))
	assert.False(t, StageValidation.Allows(CapMutate))
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: StagePlanDraft, To: StageExecution}
	assert.Contains(t, err.Error(), "plan_draft")
	assert.Contains(t, err.Error(), "execution")
}
