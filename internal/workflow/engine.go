// Package workflow implements the deployment pipeline state machine. Each
// session's engine evaluates stages strictly sequentially, commits a
// transition only after its guard and any required gateway call have
// returned, and emits one audit event per transition.
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/audit"
	"github.com/fyrsmithlabs/deployd/internal/catalog"
	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/deployments"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/deployd/internal/workflow"

// Invoker is the gateway surface the engine drives.
type Invoker interface {
	Invoke(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// CredentialChecker reports whether a session has usable credentials. The
// intake guard consults it without touching secret material.
type CredentialChecker interface {
	Status(ctx context.Context, sessionID string) (credentials.Status, error)
}

// Report is the user-facing outcome of one pipeline evaluation.
type Report struct {
	SessionID        string   `json:"session_id"`
	Stage            Stage    `json:"stage"`
	Summary          string   `json:"summary"`
	Notes            []string `json:"notes,omitempty"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	NeedsCredentials bool     `json:"needs_credentials,omitempty"`
	Escalated        bool     `json:"escalated,omitempty"`
	DeploymentID     string   `json:"deployment_id,omitempty"`
}

func (r *Report) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

type completedStep struct {
	step   Step
	result map[string]any
}

// sessionState is one session's position in the pipeline. Guarded by its
// own mutex so stage evaluation is strictly sequential per session.
type sessionState struct {
	mu sync.Mutex

	stage  Stage
	plan   *Plan
	drafts int

	// vetoes counts compliance rejections per plan fingerprint, so a
	// resubmitted identical plan accumulates toward escalation.
	vetoes map[string]int

	completed []completedStep

	flagMu      sync.Mutex
	pendingVeto *VetoError
	cancelled   bool
}

func (st *sessionState) takeCancelled() bool {
	st.flagMu.Lock()
	defer st.flagMu.Unlock()
	c := st.cancelled
	st.cancelled = false
	return c
}

func (st *sessionState) takePendingVeto() *VetoError {
	st.flagMu.Lock()
	defer st.flagMu.Unlock()
	v := st.pendingVeto
	st.pendingVeto = nil
	return v
}

// Engine drives the pipeline for all sessions.
type Engine struct {
	gateway  Invoker
	creds    CredentialChecker
	reviewer Reviewer
	sink     audit.Sink
	sessions *session.Manager
	store    deployments.Store
	catalog  *catalog.Catalog
	logger   *logging.Logger
	cfg      config.WorkflowConfig

	dryRunRetries int

	mu     sync.Mutex
	states map[string]*sessionState

	transitionsCtr metric.Int64Counter
	escalationsCtr metric.Int64Counter
}

// NewEngine creates the workflow engine.
func NewEngine(
	gw Invoker,
	creds CredentialChecker,
	reviewer Reviewer,
	sink audit.Sink,
	sessions *session.Manager,
	store deployments.Store,
	cat *catalog.Catalog,
	logger *logging.Logger,
	cfg config.WorkflowConfig,
) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("workflow: gateway is required")
	}
	if creds == nil {
		return nil, errors.New("workflow: credential checker is required")
	}
	if reviewer == nil {
		return nil, errors.New("workflow: compliance reviewer is required")
	}
	if sink == nil {
		return nil, errors.New("workflow: audit sink is required")
	}
	if sessions == nil {
		return nil, errors.New("workflow: session manager is required")
	}
	if store == nil {
		return nil, errors.New("workflow: deployment store is required")
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.VetoThreshold <= 0 {
		cfg.VetoThreshold = 2
	}
	// nil means unconfigured; an explicit zero disables retries.
	dryRunRetries := 1
	if cfg.DryRunRetries != nil && *cfg.DryRunRetries >= 0 {
		dryRunRetries = *cfg.DryRunRetries
	}
	if cfg.StageTimeout.Duration() <= 0 {
		cfg.StageTimeout = config.Duration(3 * time.Minute)
	}

	e := &Engine{
		gateway:       gw,
		creds:         creds,
		reviewer:      reviewer,
		sink:          sink,
		sessions:      sessions,
		store:         store,
		catalog:       cat,
		logger:        logger.Named("workflow"),
		cfg:           cfg,
		dryRunRetries: dryRunRetries,
		states:        make(map[string]*sessionState),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	e.transitionsCtr, err = meter.Int64Counter(
		"deployd.workflow.transitions_total",
		metric.WithDescription("Stage transitions labeled by from/to stage."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create transitions counter", zap.Error(err))
	}

	e.escalationsCtr, err = meter.Int64Counter(
		"deployd.workflow.escalations_total",
		metric.WithDescription("Human escalations labeled by reason."),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create escalations counter", zap.Error(err))
	}
}

func (e *Engine) stateFor(sessionID string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[sessionID]
	if !ok {
		st = &sessionState{stage: StageIntake, vetoes: make(map[string]int)}
		e.states[sessionID] = st
	}
	return st
}

// Stage returns the session's current stage.
func (e *Engine) Stage(sessionID string) Stage {
	st := e.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stage
}

// Cancel requests cancellation of the session's in-progress pipeline. The
// engine honors it at the next suspension point: Failed directly when
// nothing destructive has committed, Rollback first otherwise.
func (e *Engine) Cancel(sessionID string) {
	st := e.stateFor(sessionID)
	st.flagMu.Lock()
	st.cancelled = true
	st.flagMu.Unlock()
}

// SubmitVeto records an out-of-band compliance veto for the session's
// active plan. If a dry-run outcome is pending at the same time, the veto
// takes precedence and the dry-run result is discarded.
func (e *Engine) SubmitVeto(sessionID, reason string) {
	st := e.stateFor(sessionID)
	st.flagMu.Lock()
	revision := 0
	if st.plan != nil {
		revision = st.plan.Revision
	}
	st.pendingVeto = &VetoError{Reason: reason, Revision: revision}
	st.flagMu.Unlock()
}

// Run evaluates the pipeline for one intent, advancing as far as the
// guards allow. It returns when the pipeline reaches a terminal stage or
// pauses for user input (missing fields, credentials, veto, failure).
func (e *Engine) Run(ctx context.Context, sessionID string, intent Intent) (*Report, error) {
	if sessionID == "" {
		return nil, errors.New("workflow: session id is required")
	}
	ctx = logging.WithSessionID(ctx, sessionID)

	st := e.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// A finished pipeline leaves the session open for a new intent. Veto
	// and cancellation flags are scoped to the pipeline they were aimed
	// at; a fresh run must not inherit them.
	if st.stage.Terminal() {
		st.stage = StageIntake
		st.plan = nil
		st.completed = nil
		st.drafts = 0
		st.vetoes = make(map[string]int)
		st.flagMu.Lock()
		st.pendingVeto = nil
		st.cancelled = false
		st.flagMu.Unlock()
	}

	report := &Report{SessionID: sessionID, Stage: st.stage}
	for {
		if st.takeCancelled() {
			// At a terminal stage there is nothing left to cancel; the
			// request raced the pipeline finishing and is dropped.
			if !st.stage.Terminal() {
				return e.handleCancellation(ctx, sessionID, st, report)
			}
			report.note("Cancellation request arrived after the pipeline finished; ignored.")
		}

		switch st.stage {
		case StageIntake:
			done, err := e.runIntake(ctx, sessionID, st, intent, report)
			if done || err != nil {
				return report, err
			}

		case StageContextSync:
			report.note("Deploying %s from %s to %s.", intent.Target, intent.RepoURL, intent.Region)
			if err := e.transition(ctx, sessionID, st, StagePreflight, audit.StatusSuccess, ""); err != nil {
				return nil, err
			}

		case StagePreflight:
			if done, err := e.runPreflight(ctx, sessionID, st, intent, report); done || err != nil {
				return report, err
			}

		case StagePlanDraft:
			if done, err := e.runPlanDraft(ctx, sessionID, st, intent, report); done || err != nil {
				return report, err
			}

		case StageComplianceReview:
			if done, err := e.runComplianceReview(ctx, sessionID, st, report); done || err != nil {
				return report, err
			}

		case StageDryRun:
			if done, err := e.runDryRun(ctx, sessionID, st, report); done || err != nil {
				return report, err
			}

		case StageExecution:
			if done, err := e.runExecution(ctx, sessionID, st, intent, report); done || err != nil {
				return report, err
			}

		case StageValidation:
			if done, err := e.runValidation(ctx, sessionID, st, intent, report); done || err != nil {
				return report, err
			}

		case StageClosure:
			return e.runClosure(ctx, sessionID, st, intent, report)

		default:
			return nil, fmt.Errorf("workflow: unexpected stage %s", st.stage)
		}
	}
}

// transition commits an edge. The emitted audit event names the stage just
// completed.
func (e *Engine) transition(ctx context.Context, sessionID string, st *sessionState, to Stage, status audit.Status, errCode string) error {
	if !CanTransition(st.stage, to) {
		return &InvalidTransitionError{From: st.stage, To: to}
	}
	from := st.stage
	st.stage = to

	e.sink.Emit(ctx, audit.Event{
		SessionID: sessionID,
		Stage:     string(from),
		Status:    status,
		ErrorCode: errCode,
	})
	if e.transitionsCtr != nil {
		e.transitionsCtr.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	}

	planID := ""
	if st.plan != nil {
		planID = st.plan.ID
	}
	e.sessions.GetOrCreate(sessionID).SetStage(string(to), planID)

	e.logger.Info(ctx, "stage transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("status", string(status)))
	return nil
}

func (e *Engine) escalate(ctx context.Context, report *Report, reason string) {
	report.Escalated = true
	report.note("Escalated to a human operator: %s", reason)
	if e.escalationsCtr != nil {
		e.escalationsCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
	e.logger.Warn(ctx, "human escalation", zap.String("reason", reason))
}

// call issues one gateway invocation on behalf of the current stage after
// checking the stage's static capability set.
func (e *Engine) call(ctx context.Context, sessionID string, st *sessionState, c Call, cap Capability, planning bool) (*gateway.Result, error) {
	if !st.stage.Allows(cap) {
		return nil, fmt.Errorf("workflow: stage %s is not permitted to perform this call", st.stage)
	}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout.Duration())
	defer cancel()
	return e.gateway.Invoke(cctx, gateway.Request{
		SessionID: sessionID,
		Action:    c.Action,
		Params:    c.Params,
		Confirm:   c.Confirm,
		Planning:  planning,
		Stage:     string(st.stage),
	})
}

func (e *Engine) runIntake(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (bool, error) {
	if missing := intent.MissingFields(); len(missing) > 0 {
		report.Stage = st.stage
		report.MissingFields = missing
		report.Summary = fmt.Sprintf("I need a few more details before planning: %s.", strings.Join(missing, ", "))
		return true, nil
	}

	status, err := e.creds.Status(ctx, sessionID)
	if err != nil {
		return true, fmt.Errorf("check credentials: %w", err)
	}
	if status.State != credentials.StatePresent {
		report.Stage = st.stage
		report.NeedsCredentials = true
		report.Summary = "Cloud credentials are not configured for this session. Please provide an access key and secret before deploying."
		return true, nil
	}

	return false, e.transition(ctx, sessionID, st, StageContextSync, audit.StatusSuccess, "")
}

func (e *Engine) runPreflight(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (bool, error) {
	var remediation string
	if !validRepoURL(intent.RepoURL) {
		remediation = fmt.Sprintf("repository URL %q is not a valid https or ssh git URL", intent.RepoURL)
	}
	if remediation == "" && intent.Target == TargetEC2 {
		if bucket, _ := intent.Params["bucket_name"].(string); bucket != "" {
			if err := catalog.ValidateBucketName(bucket); err != nil {
				remediation = err.Error()
			}
		}
	}

	if remediation != "" {
		if err := e.transition(ctx, sessionID, st, StageFailed, audit.StatusFailure, gateway.CodeValidation); err != nil {
			return true, err
		}
		report.Stage = StageFailed
		report.Summary = fmt.Sprintf("Preflight checks failed: %s.", remediation)
		return true, nil
	}

	return false, e.transition(ctx, sessionID, st, StagePlanDraft, audit.StatusSuccess, "")
}

func (e *Engine) runPlanDraft(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (bool, error) {
	st.drafts++
	plan, err := draftPlan(sessionID, intent, st.drafts)
	if err != nil {
		report.Stage = st.stage
		report.Summary = fmt.Sprintf("Could not compose a plan: %v.", err)
		return true, nil
	}
	st.plan = plan
	st.completed = nil

	report.note("Drafted plan revision %d with %d steps.", plan.Revision, len(plan.Steps))
	return false, e.transition(ctx, sessionID, st, StageComplianceReview, audit.StatusSuccess, "")
}

func (e *Engine) runComplianceReview(ctx context.Context, sessionID string, st *sessionState, report *Report) (bool, error) {
	verdict, err := e.reviewer.Review(ctx, st.plan)
	if err != nil {
		if terr := e.transition(ctx, sessionID, st, StageFailed, audit.StatusFailure, gateway.CodeToolFailure); terr != nil {
			return true, terr
		}
		report.Stage = StageFailed
		report.Summary = fmt.Sprintf("Compliance review could not complete: %v.", err)
		return true, nil
	}

	if !verdict.Approved {
		return true, e.applyVeto(ctx, sessionID, st, report, verdict.Reason)
	}

	st.plan.ComplianceState = ComplianceApproved
	report.note("Compliance review approved plan revision %d.", st.plan.Revision)
	return false, e.transition(ctx, sessionID, st, StageDryRun, audit.StatusSuccess, "")
}

// applyVeto rejects the active plan and returns the engine to plan
// drafting, escalating when the same plan content keeps being vetoed.
func (e *Engine) applyVeto(ctx context.Context, sessionID string, st *sessionState, report *Report, reason string) error {
	st.plan.ComplianceState = ComplianceRejected
	st.plan.VetoReason = reason

	fp := planFingerprint(st.plan)
	st.vetoes[fp]++
	if st.vetoes[fp] >= e.cfg.VetoThreshold {
		e.escalate(ctx, report, fmt.Sprintf("compliance veto recurred %d times for the same plan", st.vetoes[fp]))
	}

	if err := e.transition(ctx, sessionID, st, StagePlanDraft, audit.StatusVeto, "compliance_veto"); err != nil {
		return err
	}
	report.Stage = StagePlanDraft
	report.Summary = fmt.Sprintf("Compliance vetoed the plan: %s. Please adjust the request.", reason)
	return nil
}

func (e *Engine) runDryRun(ctx context.Context, sessionID string, st *sessionState, report *Report) (bool, error) {
	var lastErr error
	attempts := 1 + e.dryRunRetries
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = e.runPreviews(ctx, sessionID, st)
		if lastErr == nil {
			break
		}
		e.logger.Warn(ctx, "dry run attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}

	// A veto that arrived while the dry run was in flight wins; the
	// dry-run outcome is discarded.
	if v := st.takePendingVeto(); v != nil {
		return true, e.applyVeto(ctx, sessionID, st, report, v.Reason)
	}

	if lastErr != nil {
		st.plan.DryRunResult = &DryRunResult{Detail: lastErr.Error(), At: time.Now().UTC()}
		if err := e.transition(ctx, sessionID, st, StagePlanDraft, audit.StatusFailure, gateway.ErrorCode(lastErr)); err != nil {
			return true, err
		}
		report.Stage = StagePlanDraft
		report.Summary = fmt.Sprintf("Dry run failed: %v. The plan needs revision.", lastErr)
		return true, nil
	}

	st.plan.DryRunResult = &DryRunResult{Passed: true, At: time.Now().UTC()}
	report.note("Dry run passed for plan revision %d.", st.plan.Revision)
	return false, e.transition(ctx, sessionID, st, StageExecution, audit.StatusSuccess, "")
}

func (e *Engine) runPreviews(ctx context.Context, sessionID string, st *sessionState) error {
	previews := 0
	for _, step := range st.plan.Steps {
		if step.Preview == nil {
			continue
		}
		previews++
		if _, err := e.call(ctx, sessionID, st, *step.Preview, CapPreview, true); err != nil {
			return fmt.Errorf("preview for step %q: %w", step.Name, err)
		}
	}
	if previews == 0 {
		e.logger.Debug(ctx, "plan has no preview calls, dry run passes vacuously")
	}
	return nil
}

func (e *Engine) runExecution(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (bool, error) {
	for _, step := range st.plan.ExecutionSteps() {
		if st.takeCancelled() {
			_, err := e.handleCancellation(ctx, sessionID, st, report)
			return true, err
		}

		res, err := e.call(ctx, sessionID, st, step.Call, CapMutate, false)
		if err != nil {
			return true, e.failExecution(ctx, sessionID, st, intent, report, step, err)
		}
		st.completed = append(st.completed, completedStep{step: step, result: res.Data})
		report.note("Executed step %q.", step.Name)
	}
	return false, e.transition(ctx, sessionID, st, StageValidation, audit.StatusSuccess, "")
}

// failExecution issues compensating actions for every committed step in
// reverse order, then marks the session failed with an escalation record.
func (e *Engine) failExecution(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report, failed Step, cause error) error {
	if err := e.transition(ctx, sessionID, st, StageRollback, audit.StatusFailure, gateway.ErrorCode(cause)); err != nil {
		return err
	}

	status := deployments.StatusFailed
	issued, rbErr := e.compensate(ctx, sessionID, st, report)
	if rbErr != nil {
		e.escalate(ctx, report, rbErr.Error())
	} else if issued > 0 {
		status = deployments.StatusRolledBack
	}

	if err := e.transition(ctx, sessionID, st, StageFailed, audit.StatusFailure, gateway.ErrorCode(cause)); err != nil {
		return err
	}
	e.escalate(ctx, report, fmt.Sprintf("execution failure in step %q", failed.Name))
	e.recordDeployment(ctx, sessionID, st, intent, status, report)

	report.Stage = StageFailed
	report.Summary = fmt.Sprintf("Execution failed at step %q: %v.", failed.Name, cause)
	return nil
}

// compensate undoes committed steps newest-first, returning how many
// compensating actions were issued. A compensation failure stops the sweep
// and is reported as a RollbackFailure.
func (e *Engine) compensate(ctx context.Context, sessionID string, st *sessionState, report *Report) (int, error) {
	issued := 0
	for i := len(st.completed) - 1; i >= 0; i-- {
		done := st.completed[i]
		def, err := e.catalog.Lookup(done.step.Call.Action)
		if err != nil || def.Compensate == nil {
			continue
		}
		action, params, ok := def.Compensate(done.step.Call.Params, done.result)
		if !ok {
			continue
		}

		// Compensations are destructive by nature and carry confirm.
		if _, err := e.call(ctx, sessionID, st, Call{Action: action, Params: params, Confirm: true}, CapCompensate, false); err != nil {
			return issued, &RollbackFailureError{Step: done.step.Name, Err: err}
		}
		issued++
		report.note("Issued compensating action %q for step %q.", action, done.step.Name)
	}
	return issued, nil
}

func (e *Engine) runValidation(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (bool, error) {
	for _, step := range st.plan.ValidationSteps() {
		if _, err := e.call(ctx, sessionID, st, step.Call, CapInspect, false); err != nil {
			if terr := e.transition(ctx, sessionID, st, StageFailed, audit.StatusFailure, gateway.ErrorCode(err)); terr != nil {
				return true, terr
			}
			e.recordDeployment(ctx, sessionID, st, intent, deployments.StatusFailed, report)
			report.Stage = StageFailed
			report.Summary = fmt.Sprintf("Post-deployment validation failed at %q: %v.", step.Name, err)
			return true, nil
		}
		report.note("Validation step %q passed.", step.Name)
	}
	return false, e.transition(ctx, sessionID, st, StageClosure, audit.StatusSuccess, "")
}

func (e *Engine) runClosure(ctx context.Context, sessionID string, st *sessionState, intent Intent, report *Report) (*Report, error) {
	e.recordDeployment(ctx, sessionID, st, intent, deployments.StatusSucceeded, report)
	report.Stage = StageClosure
	report.Summary = fmt.Sprintf("Deployment of %s from %s completed successfully in %s.",
		intent.Target, intent.RepoURL, intent.Region)
	return report, nil
}

func (e *Engine) handleCancellation(ctx context.Context, sessionID string, st *sessionState, report *Report) (*Report, error) {
	report.note("Cancellation requested by user.")

	if st.stage == StageExecution && len(st.completed) > 0 {
		if err := e.transition(ctx, sessionID, st, StageRollback, audit.StatusFailure, "cancelled"); err != nil {
			return nil, err
		}
		if _, rbErr := e.compensate(ctx, sessionID, st, report); rbErr != nil {
			e.escalate(ctx, report, rbErr.Error())
		}
	}
	if err := e.transition(ctx, sessionID, st, StageFailed, audit.StatusFailure, "cancelled"); err != nil {
		return nil, err
	}
	report.Stage = StageFailed
	report.Summary = "Deployment cancelled."
	return report, nil
}

func (e *Engine) recordDeployment(ctx context.Context, sessionID string, st *sessionState, intent Intent, status deployments.Status, report *Report) {
	if st.plan == nil {
		return
	}
	branch, _ := intent.Params["branch"].(string)
	rec := deployments.Record{
		DeploymentID: uuid.New().String(),
		SessionID:    sessionID,
		RepoHash:     deployments.RepoHash(intent.RepoURL, branch),
		Target:       intent.Target,
		Status:       status,
		Config:       gateway.SanitizeParams(intent.Params),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.Insert(ctx, rec); err != nil {
		e.logger.Error(ctx, "failed to persist deployment record",
			zap.String("deployment_id", rec.DeploymentID), zap.Error(err))
		return
	}
	report.DeploymentID = rec.DeploymentID
}

func planFingerprint(p *Plan) string {
	raw, err := json.Marshal(p.Steps)
	if err != nil {
		return p.ID
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

func validRepoURL(url string) bool {
	url = strings.TrimSpace(url)
	return strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "git@") ||
		strings.HasPrefix(url, "ssh://")
}
