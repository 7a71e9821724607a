package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Lookup(t *testing.T) {
	c := Default()

	def, err := c.Lookup("launch_ec2")
	require.NoError(t, err)
	assert.Equal(t, CategoryCompute, def.Category)
	assert.Equal(t, ClassExternal, def.Class)
	assert.False(t, def.Destructive)

	_, err = c.Lookup("delete_everything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDefault_DestructiveTagging(t *testing.T) {
	c := Default()

	destructive := map[string]bool{
		"terminate_ec2":      true,
		"stop_ec2":           true,
		"update_service":     true,
		"update_lambda_code": true,
	}

	for _, name := range c.Names() {
		def, err := c.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, destructive[name], def.Destructive, "action %s", name)
	}
}

func TestDefault_CompositesAreShellClass(t *testing.T) {
	c := Default()

	for _, name := range []string{"deploy_lambda_repo", "deploy_ec2_repo"} {
		def, err := c.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, ClassShell, def.Class, "action %s", name)
		assert.Equal(t, CategoryRepository, def.Category)
	}
}

func TestValidate_RequiredParams(t *testing.T) {
	c := Default()

	tests := []struct {
		action  string
		params  map[string]any
		wantErr string
	}{
		{
			action:  "launch_ec2",
			params:  map[string]any{"instance_type": "t3.micro"},
			wantErr: `"ami_id" parameter is required`,
		},
		{
			action: "launch_ec2",
			params: map[string]any{"ami_id": "ami-123", "instance_type": "t3.micro"},
		},
		{
			action:  "terminate_ec2",
			params:  map[string]any{},
			wantErr: `"instance_id" parameter is required`,
		},
		{
			action:  "deploy_lambda",
			params:  map[string]any{"function_name": "fn"},
			wantErr: "parameter is required",
		},
		{
			action:  "register_task_definition",
			params:  map[string]any{"family": "web"},
			wantErr: "container_definitions",
		},
		{
			action: "register_task_definition",
			params: map[string]any{
				"family":                "web",
				"container_definitions": []any{map[string]any{"name": "app"}},
			},
		},
		{
			action:  "deploy_ec2_repo",
			params:  map[string]any{"repo_url": "https://github.com/acme/app", "bucket_name": "acme-artifacts", "launch_instance": true},
			wantErr: `"ami_id" parameter is required`,
		},
		{
			action: "deploy_ec2_repo",
			params: map[string]any{"repo_url": "https://github.com/acme/app", "bucket_name": "acme-artifacts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			def, err := c.Lookup(tt.action)
			require.NoError(t, err)
			err = def.Validate(tt.params)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		wantErr string
	}{
		{name: "valid", bucket: "acme-artifacts-01"},
		{name: "too short", bucket: "ab", wantErr: "between 3 and 63"},
		{name: "uppercase", bucket: "Acme-Bucket", wantErr: "lowercase"},
		{name: "periods", bucket: "acme.bucket", wantErr: "periods"},
		{name: "underscores", bucket: "acme_bucket", wantErr: "underscores"},
		{name: "leading hyphen", bucket: "-acme", wantErr: "start and end"},
		{name: "empty", bucket: "", wantErr: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeFilters(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		filters, err := NormalizeFilters("name=amzn2-ami-hvm-*,al2023-ami-*")
		require.NoError(t, err)
		require.Len(t, filters, 1)
		assert.Equal(t, "name", filters[0]["Name"])
		assert.Len(t, filters[0]["Values"], 2)
	})

	t.Run("structured form", func(t *testing.T) {
		filters, err := NormalizeFilters([]any{
			map[string]any{"Name": "state", "Values": []any{"available"}},
		})
		require.NoError(t, err)
		require.Len(t, filters, 1)
	})

	t.Run("tag filters pass", func(t *testing.T) {
		_, err := NormalizeFilters("tag:Environment=prod")
		require.NoError(t, err)
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		_, err := NormalizeFilters("launch-time=2024*")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported filter name")
	})
}

func TestCompensation(t *testing.T) {
	c := Default()

	t.Run("launch_ec2 compensates with terminate", func(t *testing.T) {
		def, err := c.Lookup("launch_ec2")
		require.NoError(t, err)

		name, params, ok := def.Compensate(
			map[string]any{"region": "us-east-1"},
			map[string]any{"instance_ids": []any{"i-0abc123"}},
		)
		require.True(t, ok)
		assert.Equal(t, "terminate_ec2", name)
		assert.Equal(t, "i-0abc123", params["instance_id"])
		assert.Equal(t, "us-east-1", params["region"])
	})

	t.Run("launch_ec2 without instances has nothing to undo", func(t *testing.T) {
		def, err := c.Lookup("launch_ec2")
		require.NoError(t, err)

		_, _, ok := def.Compensate(map[string]any{}, map[string]any{})
		assert.False(t, ok)
	})

	t.Run("create_service compensates by scaling to zero", func(t *testing.T) {
		def, err := c.Lookup("create_service")
		require.NoError(t, err)

		name, params, ok := def.Compensate(
			map[string]any{"cluster": "prod", "service_name": "web"},
			map[string]any{"service_arn": "arn:aws:ecs:..."},
		)
		require.True(t, ok)
		assert.Equal(t, "update_service", name)
		assert.Equal(t, 0, params["desired_count"])
	})
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]*Definition{
		{Name: "launch_ec2"},
		{Name: "launch_ec2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
