package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyReviewer_DeniedAction(t *testing.T) {
	r := NewPolicyReviewer([]string{"terminate_ec2"}, nil)
	plan := &Plan{Steps: []Step{
		{Name: "cleanup", Call: Call{Action: "terminate_ec2"}},
	}}

	verdict, err := r.Review(context.Background(), plan)
	require.NoError(t, err)
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Reason, "terminate_ec2")
}

func TestPolicyReviewer_RegionAllowlist(t *testing.T) {
	r := NewPolicyReviewer(nil, []string{"us-east-1", "eu-west-1"})

	approved := &Plan{Steps: []Step{
		{Name: "deploy", Call: Call{Action: "deploy_lambda_repo", Params: map[string]any{"region": "us-east-1"}}},
	}}
	verdict, err := r.Review(context.Background(), approved)
	require.NoError(t, err)
	assert.True(t, verdict.Approved)

	rejected := &Plan{Steps: []Step{
		{Name: "deploy", Call: Call{Action: "deploy_lambda_repo", Params: map[string]any{"region": "ap-south-1"}}},
	}}
	verdict, err = r.Review(context.Background(), rejected)
	require.NoError(t, err)
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Reason, "ap-south-1")
}

func TestPolicyReviewer_VerdictIsDeterministic(t *testing.T) {
	r := NewPolicyReviewer([]string{"update_service"}, nil)
	plan, err := draftPlan("sess-1", ec2Intent(false), 1)
	require.NoError(t, err)

	first, err := r.Review(context.Background(), plan)
	require.NoError(t, err)
	second, err := r.Review(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same plan under unchanged policy yields the same verdict")
}
