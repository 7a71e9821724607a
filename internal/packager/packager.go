// Package packager implements the repository-to-deployment composites:
// clone a git repository, build a zip artifact, and hand the artifact to
// the compute actions. Every cloud-touching step is delegated back through
// the gateway so it carries its own guardrails and audit trail.
package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/catalog"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	"github.com/fyrsmithlabs/deployd/internal/logging"
)

// Invoker is the slice of the gateway the composites delegate through.
type Invoker interface {
	Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

type cloneFunc func(ctx context.Context, url, branch, dest string) error

// Service runs the repository composites. It registers as the gateway's
// shell-class runner, so its work inherits the shell wall-clock timeout.
type Service struct {
	invoker Invoker
	clone   cloneFunc
	logger  *logging.Logger
}

// New creates the packager. The invoker is the gateway itself; construct
// the gateway first, then register the packager for the shell class.
func New(invoker Invoker, logger *logging.Logger) (*Service, error) {
	if invoker == nil {
		return nil, errors.New("packager: invoker is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		invoker: invoker,
		clone:   cloneRepository,
		logger:  logger.Named("packager"),
	}, nil
}

// Run dispatches a composite action.
func (s *Service) Run(ctx context.Context, action string, params map[string]any, _ credentials.Material) (map[string]any, error) {
	switch action {
	case "deploy_lambda_repo":
		return s.deployLambdaRepo(ctx, params)
	case "deploy_ec2_repo":
		return s.deployEC2Repo(ctx, params)
	default:
		return nil, fmt.Errorf("packager: unsupported action %q", action)
	}
}

var _ gateway.Runner = (*Service)(nil)

// checkout clones the repository shallowly and resolves the source
// directory, honoring an optional subdirectory hint.
func (s *Service) checkout(ctx context.Context, params map[string]any, subdirKey string) (root, source string, cleanup func(), err error) {
	repoURL := stringParam(params, "repo_url")
	branch := stringParam(params, "branch")

	root, err = os.MkdirTemp("", "deployd-repo-")
	if err != nil {
		return "", "", nil, fmt.Errorf("create checkout dir: %w", err)
	}
	cleanup = func() { os.RemoveAll(root) }

	dest := filepath.Join(root, "repo")
	if err := s.clone(ctx, repoURL, branch, dest); err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}

	source = dest
	if subdir := stringParam(params, subdirKey); subdir != "" {
		source = filepath.Join(dest, filepath.Clean(subdir))
		if info, statErr := os.Stat(source); statErr != nil || !info.IsDir() {
			cleanup()
			return "", "", nil, fmt.Errorf("source directory %q not found in repository", subdir)
		}
	}

	s.logger.Debug(ctx, "repository checked out",
		zap.String("repo_url", repoURL),
		zap.String("branch", branch))
	return root, source, cleanup, nil
}

func (s *Service) deployLambdaRepo(ctx context.Context, params map[string]any) (map[string]any, error) {
	root, source, cleanup, err := s.checkout(ctx, params, "lambda_subdir")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	artifact := filepath.Join(root, ArtifactName(filepath.Base(source)))
	size, err := zipDirectory(source, artifact)
	if err != nil {
		return nil, fmt.Errorf("package repository: %w", err)
	}

	region := stringParam(params, "region")
	deployParams := map[string]any{
		"function_name": params["function_name"],
		"handler":       params["handler"],
		"runtime":       params["runtime"],
		"role_arn":      params["role_arn"],
		"zip_file":      artifact,
		"region":        region,
	}
	for _, key := range []string{"description", "environment", "timeout", "memory_size"} {
		if v, ok := params[key]; ok {
			deployParams[key] = v
		}
	}

	res, err := s.delegate(ctx, "deploy_lambda", deployParams)
	if err != nil {
		return nil, err
	}

	functionName := stringParam(params, "function_name")
	return map[string]any{
		"function_name": functionName,
		"runtime":       params["runtime"],
		"repository":    params["repo_url"],
		"branch":        stringParam(params, "branch"),
		"artifact_size": size,
		"aws_response":  res.Data,
		"summary": fmt.Sprintf("Deployed Lambda function %q in %s from repository %s.",
			functionName, regionOrDefault(region), params["repo_url"]),
	}, nil
}

func (s *Service) deployEC2Repo(ctx context.Context, params map[string]any) (map[string]any, error) {
	root, source, cleanup, err := s.checkout(ctx, params, "artifact_subdir")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	artifact := filepath.Join(root, "artifact.zip")
	size, err := zipDirectory(source, artifact)
	if err != nil {
		return nil, fmt.Errorf("package repository: %w", err)
	}

	bucket := stringParam(params, "bucket_name")
	region := stringParam(params, "region")
	objectName := stringParam(params, "object_name")
	if objectName == "" {
		objectName = ArtifactName(filepath.Base(source))
	}

	if _, err := s.delegate(ctx, "upload_s3", map[string]any{
		"bucket_name": bucket,
		"file_path":   artifact,
		"object_name": objectName,
		"region":      region,
	}); err != nil {
		return nil, err
	}

	userData := stringParam(params, "user_data")
	if userData == "" {
		userData = DefaultUserData(bucket, objectName, stringParam(params, "artifact_install_path"))
	}

	summary := fmt.Sprintf("Uploaded artifact to s3://%s/%s (%d bytes).", bucket, objectName, size)

	var launchData map[string]any
	if launch, _ := params["launch_instance"].(bool); launch {
		launchParams := launchParamsFrom(params)
		launchParams["region"] = region
		launchParams["user_data"] = userData

		res, err := s.delegate(ctx, "launch_ec2", launchParams)
		if err != nil {
			return nil, err
		}
		launchData = res.Data
		if ids, err := catalog.EnsureList(launchData["instance_ids"]); err == nil && len(ids) > 0 {
			names := make([]string, 0, len(ids))
			for _, id := range ids {
				if name, ok := id.(string); ok {
					names = append(names, name)
				}
			}
			if len(names) > 0 {
				summary += fmt.Sprintf(" Launched EC2 instance(s) %s in %s.",
					strings.Join(names, ", "), regionOrDefault(region))
			}
		}
	}

	return map[string]any{
		"artifact": map[string]any{
			"bucket":     bucket,
			"object":     objectName,
			"size_bytes": size,
		},
		"repository":     params["repo_url"],
		"branch":         stringParam(params, "branch"),
		"ec2_launch":     launchData,
		"user_data_hint": userData,
		"summary":        summary,
	}, nil
}

// delegate re-enters the gateway under the originating session so the
// nested call is rate limited, audited, and recorded on its own.
func (s *Service) delegate(ctx context.Context, action string, params map[string]any) (*gateway.Result, error) {
	parent, _ := gateway.ParentRequest(ctx)
	return s.invoker.Invoke(ctx, gateway.Request{
		SessionID:     parent.SessionID,
		Action:        action,
		Params:        params,
		Confirm:       parent.Confirm,
		Stage:         parent.Stage,
		CorrelationID: parent.CorrelationID,
	})
}

// launchParamsFrom strips composite-only keys before the delegated
// launch_ec2 call.
func launchParamsFrom(params map[string]any) map[string]any {
	skip := map[string]bool{
		"repo_url": true, "bucket_name": true, "object_name": true,
		"artifact_subdir": true, "artifact_install_path": true,
		"launch_instance": true, "branch": true, "user_data": true,
		"region": true,
	}
	out := make(map[string]any)
	for k, v := range params {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}
