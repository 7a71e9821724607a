package workflow

import (
	"context"
	"fmt"
)

// Verdict is the outcome of a compliance review.
type Verdict struct {
	Approved bool
	Reason   string
}

// Reviewer evaluates a plan against policy. Reviews must be deterministic:
// the same plan revision under unchanged policy yields the same verdict.
type Reviewer interface {
	Review(ctx context.Context, plan *Plan) (Verdict, error)
}

// PolicyReviewer is the built-in rule set: a closed list of denied actions
// and an optional region allowlist.
type PolicyReviewer struct {
	denied  map[string]bool
	regions map[string]bool
}

// NewPolicyReviewer builds a reviewer. Empty allowedRegions means any
// region passes.
func NewPolicyReviewer(deniedActions, allowedRegions []string) *PolicyReviewer {
	r := &PolicyReviewer{denied: make(map[string]bool), regions: make(map[string]bool)}
	for _, a := range deniedActions {
		r.denied[a] = true
	}
	for _, region := range allowedRegions {
		r.regions[region] = true
	}
	return r
}

func (r *PolicyReviewer) Review(_ context.Context, plan *Plan) (Verdict, error) {
	for _, step := range plan.Steps {
		if r.denied[step.Call.Action] {
			return Verdict{Reason: fmt.Sprintf("action %q is denied by policy (step %q)", step.Call.Action, step.Name)}, nil
		}
		if len(r.regions) > 0 {
			if region, ok := step.Call.Params["region"].(string); ok && region != "" && !r.regions[region] {
				return Verdict{Reason: fmt.Sprintf("region %q is outside the allowed set (step %q)", region, step.Name)}, nil
			}
		}
	}
	return Verdict{Approved: true}, nil
}

var _ Reviewer = (*PolicyReviewer)(nil)
