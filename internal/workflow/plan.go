package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ComplianceState tracks the policy verdict on a plan revision.
type ComplianceState string

const (
	CompliancePending  ComplianceState = "pending"
	ComplianceApproved ComplianceState = "approved"
	ComplianceRejected ComplianceState = "rejected"
)

// StepKind classifies a plan step.
type StepKind string

const (
	StepPackage   StepKind = "package"
	StepProvision StepKind = "provision"
	StepDeploy    StepKind = "deploy"
	StepValidate  StepKind = "validate"
)

// Call is one gateway invocation a step performs.
type Call struct {
	Action  string         `json:"action"`
	Params  map[string]any `json:"params"`
	Confirm bool           `json:"confirm,omitempty"`
}

// Step is one ordered unit of a plan. Preview, when present, is the
// read-only call the dry run uses to check the step's preconditions.
type Step struct {
	Name    string   `json:"name"`
	Kind    StepKind `json:"kind"`
	Call    Call     `json:"call"`
	Preview *Call    `json:"preview,omitempty"`
}

// DryRunResult records the outcome of a plan revision's dry run.
type DryRunResult struct {
	Passed bool      `json:"passed"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Plan is the ordered, versioned step list for one deployment. Exactly one
// plan is active per session; it is mutated only by that session's engine.
// Once execution starts, only result fields are appended.
type Plan struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Revision        int             `json:"revision"`
	Steps           []Step          `json:"steps"`
	ComplianceState ComplianceState `json:"compliance_state"`
	VetoReason      string          `json:"veto_reason,omitempty"`
	DryRunResult    *DryRunResult   `json:"dry_run_result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ExecutionSteps returns the steps the Execution stage runs, in order.
func (p *Plan) ExecutionSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind != StepValidate {
			out = append(out, s)
		}
	}
	return out
}

// ValidationSteps returns the health-check steps for the Validation stage.
func (p *Plan) ValidationSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Kind == StepValidate {
			out = append(out, s)
		}
	}
	return out
}

// Intent is the structured deployment request distilled from the
// conversation: what to deploy, where, and from which repository.
type Intent struct {
	Region  string         `json:"region"`
	Target  string         `json:"target"`
	RepoURL string         `json:"repo_url"`
	Params  map[string]any `json:"params,omitempty"`
}

const (
	TargetLambda = "lambda"
	TargetEC2    = "ec2"
)

// MissingFields lists the required intake fields the intent lacks. Empty
// means the intent is complete enough to start the pipeline.
func (in Intent) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(in.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(in.RepoURL) == "" {
		missing = append(missing, "repo_url")
	}
	switch in.Target {
	case TargetLambda:
		for _, key := range []string{"function_name", "handler", "runtime", "role_arn"} {
			if in.param(key) == "" {
				missing = append(missing, key)
			}
		}
	case TargetEC2:
		if in.param("bucket_name") == "" {
			missing = append(missing, "bucket_name")
		}
		if launch, _ := in.Params["launch_instance"].(bool); launch {
			for _, key := range []string{"ami_id", "instance_type", "key_name"} {
				if in.param(key) == "" {
					missing = append(missing, key)
				}
			}
		}
	default:
		missing = append(missing, "target")
	}
	return missing
}

func (in Intent) param(key string) string {
	v, _ := in.Params[key].(string)
	return strings.TrimSpace(v)
}

// draftPlan composes the step list for an intent. The same intent always
// yields the same steps, so a re-drafted revision differs only in revision
// number unless the intent changed.
func draftPlan(sessionID string, intent Intent, revision int) (*Plan, error) {
	if missing := intent.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("intent incomplete, missing %s", strings.Join(missing, ", "))
	}

	var steps []Step
	switch intent.Target {
	case TargetLambda:
		params := map[string]any{
			"repo_url":      intent.RepoURL,
			"region":        intent.Region,
			"function_name": intent.Params["function_name"],
			"handler":       intent.Params["handler"],
			"runtime":       intent.Params["runtime"],
			"role_arn":      intent.Params["role_arn"],
		}
		copyOptional(params, intent.Params, "branch", "lambda_subdir", "environment", "description", "timeout", "memory_size")
		steps = []Step{
			{
				Name: "package-and-deploy-function",
				Kind: StepDeploy,
				Call: Call{Action: "deploy_lambda_repo", Params: params},
			},
			{
				Name: "invoke-health-check",
				Kind: StepValidate,
				Call: Call{Action: "invoke_lambda", Params: map[string]any{
					"function_name": intent.Params["function_name"],
					"region":        intent.Region,
				}},
			},
		}

	case TargetEC2:
		params := map[string]any{
			"repo_url":    intent.RepoURL,
			"region":      intent.Region,
			"bucket_name": intent.Params["bucket_name"],
		}
		copyOptional(params, intent.Params, "branch", "artifact_subdir", "artifact_install_path",
			"object_name", "launch_instance", "ami_id", "instance_type", "key_name", "user_data")

		if launch, _ := intent.Params["launch_instance"].(bool); launch {
			steps = []Step{
				{
					Name: "verify-key-pair",
					Kind: StepProvision,
					Call: Call{Action: "describe_key_pairs", Params: map[string]any{
						"key_names": []any{intent.Params["key_name"]},
						"region":    intent.Region,
					}},
				},
				{
					Name: "stage-artifact-and-launch",
					Kind: StepProvision,
					Call: Call{Action: "deploy_ec2_repo", Params: params},
					Preview: &Call{Action: "describe_images", Params: map[string]any{
						"image_ids": []any{intent.Params["ami_id"]},
						"region":    intent.Region,
					}},
				},
				{
					Name: "list-running-instances",
					Kind: StepValidate,
					Call: Call{Action: "list_ec2_instances", Params: map[string]any{"region": intent.Region}},
				},
			}
		} else {
			steps = []Step{
				{
					Name: "stage-artifact",
					Kind: StepPackage,
					Call: Call{Action: "deploy_ec2_repo", Params: params},
					Preview: &Call{Action: "list_s3_objects", Params: map[string]any{
						"bucket_name": intent.Params["bucket_name"],
						"region":      intent.Region,
					}},
				},
				{
					Name: "list-staged-artifacts",
					Kind: StepValidate,
					Call: Call{Action: "list_s3_objects", Params: map[string]any{
						"bucket_name": intent.Params["bucket_name"],
						"region":      intent.Region,
					}},
				},
			}
		}

	default:
		return nil, fmt.Errorf("unsupported deployment target %q", intent.Target)
	}

	return &Plan{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Revision:        revision,
		Steps:           steps,
		ComplianceState: CompliancePending,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func copyOptional(dst, src map[string]any, keys ...string) {
	for _, key := range keys {
		if v, ok := src[key]; ok {
			dst[key] = v
		}
	}
}
