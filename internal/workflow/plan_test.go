package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntent_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		missing []string
	}{
		{
			name:    "empty intent",
			intent:  Intent{},
			missing: []string{"region", "repo_url", "target"},
		},
		{
			name: "lambda without function details",
			intent: Intent{
				Region: "us-east-1", Target: TargetLambda,
				RepoURL: "https://github.com/acme/app.git",
				Params:  map[string]any{"function_name": "app"},
			},
			missing: []string{"handler", "runtime", "role_arn"},
		},
		{
			name: "ec2 launch without instance details",
			intent: Intent{
				Region: "us-east-1", Target: TargetEC2,
				RepoURL: "https://github.com/acme/app.git",
				Params: map[string]any{
					"bucket_name":     "artifacts",
					"launch_instance": true,
				},
			},
			missing: []string{"ami_id", "instance_type", "key_name"},
		},
		{
			name:    "complete lambda intent",
			intent:  lambdaIntent(),
			missing: nil,
		},
		{
			name:    "complete ec2 intent",
			intent:  ec2Intent(true),
			missing: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missing, tt.intent.MissingFields())
		})
	}
}

func TestDraftPlan_Lambda(t *testing.T) {
	plan, err := draftPlan("sess-1", lambdaIntent(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Revision)
	assert.Equal(t, CompliancePending, plan.ComplianceState)
	require.Len(t, plan.Steps, 2)

	exec := plan.ExecutionSteps()
	require.Len(t, exec, 1)
	assert.Equal(t, "deploy_lambda_repo", exec[0].Call.Action)

	val := plan.ValidationSteps()
	require.Len(t, val, 1)
	assert.Equal(t, "invoke_lambda", val[0].Call.Action)
}

func TestDraftPlan_EC2WithLaunchHasPreviews(t *testing.T) {
	plan, err := draftPlan("sess-1", ec2Intent(true), 1)
	require.NoError(t, err)

	exec := plan.ExecutionSteps()
	require.Len(t, exec, 2)
	assert.Equal(t, "describe_key_pairs", exec[0].Call.Action)
	assert.Equal(t, "deploy_ec2_repo", exec[1].Call.Action)
	require.NotNil(t, exec[1].Preview)
	assert.Equal(t, "describe_images", exec[1].Preview.Action)

	launch, ok := exec[1].Call.Params["launch_instance"].(bool)
	require.True(t, ok)
	assert.True(t, launch)
}

func TestDraftPlan_SameIntentSameFingerprint(t *testing.T) {
	a, err := draftPlan("sess-1", ec2Intent(false), 1)
	require.NoError(t, err)
	b, err := draftPlan("sess-1", ec2Intent(false), 2)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, planFingerprint(a), planFingerprint(b),
		"identical intents produce the same plan content")

	changed := ec2Intent(false)
	changed.Params["bucket_name"] = "other-bucket"
	c, err := draftPlan("sess-1", changed, 3)
	require.NoError(t, err)
	assert.NotEqual(t, planFingerprint(a), planFingerprint(c))
}

func TestDraftPlan_UnknownTarget(t *testing.T) {
	intent := lambdaIntent()
	intent.Target = "mainframe"
	_, err := draftPlan("sess-1", intent, 1)
	assert.Error(t, err)
}
