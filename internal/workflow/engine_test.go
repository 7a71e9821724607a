package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deployd/internal/audit"
	"github.com/fyrsmithlabs/deployd/internal/catalog"
	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/deployments"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/session"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.Request
	fail     map[string]error
	failOnce map[string]error
	data     map[string]map[string]any

	// hook runs after each recorded request, outside the lock.
	hook func(req gateway.Request)
}

func (f *fakeGateway) Invoke(_ context.Context, req gateway.Request) (*gateway.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)

	var err error
	if once, ok := f.failOnce[req.Action]; ok {
		delete(f.failOnce, req.Action)
		err = once
	} else if fixed := f.fail[req.Action]; fixed != nil {
		err = fixed
	}
	data := f.data[req.Action]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return &gateway.Result{
		Action:  req.Action,
		Outcome: gateway.OutcomeSuccess,
		Data:    data,
	}, nil
}

func (f *fakeGateway) calls(action string) []gateway.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.Request
	for _, req := range f.requests {
		if req.Action == action {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeGateway) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeCreds struct{ present bool }

func (f fakeCreds) Status(context.Context, string) (credentials.Status, error) {
	if f.present {
		return credentials.Status{State: credentials.StatePresent, KeyLastFour: "MPLE"}, nil
	}
	return credentials.Status{State: credentials.StateMissing}, nil
}

type fakeReviewer struct {
	approve bool
	reason  string
}

func (f fakeReviewer) Review(context.Context, *Plan) (Verdict, error) {
	return Verdict{Approved: f.approve, Reason: f.reason}, nil
}

type engineHarness struct {
	engine   *Engine
	gw       *fakeGateway
	events   *audit.Memory
	store    *deployments.MemoryStore
	sessions *session.Manager
}

func newEngineHarness(t *testing.T, gw *fakeGateway, creds CredentialChecker, reviewer Reviewer) *engineHarness {
	t.Helper()
	if gw.fail == nil {
		gw.fail = make(map[string]error)
	}
	if gw.failOnce == nil {
		gw.failOnce = make(map[string]error)
	}

	events := audit.NewMemory()
	store := deployments.NewMemoryStore()
	sessions := session.NewManager(0, logging.NewNop())

	engine, err := NewEngine(gw, creds, reviewer, events, sessions, store,
		catalog.Default(), logging.NewNop(), config.WorkflowConfig{
			DryRunRetries: retryCount(1),
			VetoThreshold: 2,
		})
	require.NoError(t, err)
	return &engineHarness{engine: engine, gw: gw, events: events, store: store, sessions: sessions}
}

func retryCount(n int) *int { return &n }

func lambdaIntent() Intent {
	return Intent{
		Region:  "us-east-1",
		Target:  TargetLambda,
		RepoURL: "https://github.com/acme/app.git",
		Params: map[string]any{
			"function_name": "app",
			"handler":       "main.handler",
			"runtime":       "python3.12",
			"role_arn":      "arn:aws:iam::1:role/app",
		},
	}
}

func ec2Intent(launch bool) Intent {
	params := map[string]any{"bucket_name": "deploy-artifacts"}
	if launch {
		params["launch_instance"] = true
		params["ami_id"] = "ami-1"
		params["instance_type"] = "t3.micro"
		params["key_name"] = "dev-key"
	}
	return Intent{
		Region:  "us-east-1",
		Target:  TargetEC2,
		RepoURL: "https://github.com/acme/app.git",
		Params:  params,
	}
}

// stageEvents filters out gateway tool events, leaving the per-transition
// stage events.
func stageEvents(events []audit.Event) []audit.Event {
	var out []audit.Event
	for _, e := range events {
		if e.Tool == "" {
			out = append(out, e)
		}
	}
	return out
}

func TestRun_MissingFieldsStayInIntake(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true}, fakeReviewer{approve: true})

	intent := lambdaIntent()
	intent.Region = ""
	report, err := h.engine.Run(context.Background(), "sess-1", intent)
	require.NoError(t, err)

	assert.Equal(t, StageIntake, report.Stage)
	assert.Contains(t, report.MissingFields, "region")
	assert.Zero(t, h.gw.total(), "no gateway call before intake completes")
}

func TestRun_MissingCredentialsPromptWithoutGatewayCall(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: false}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(true))
	require.NoError(t, err)

	assert.Equal(t, StageIntake, report.Stage)
	assert.True(t, report.NeedsCredentials)
	assert.Contains(t, report.Summary, "credentials")
	assert.Zero(t, h.gw.total(), "no gateway call may be made without credentials")
}

func TestRun_HappyPathReachesClosure(t *testing.T) {
	gw := &fakeGateway{data: map[string]map[string]any{
		"deploy_lambda_repo": {"function_name": "app"},
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)

	assert.Equal(t, StageClosure, report.Stage)
	assert.NotEmpty(t, report.DeploymentID)
	assert.False(t, report.Escalated)

	require.Len(t, gw.calls("deploy_lambda_repo"), 1)
	require.Len(t, gw.calls("invoke_lambda"), 1)

	recs, err := h.store.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, deployments.StatusSucceeded, recs[0].Status)
	assert.Equal(t, TargetLambda, recs[0].Target)

	status := h.sessions.GetOrCreate("sess-1").Status()
	assert.Equal(t, string(StageClosure), status.Stage)

	byStage := map[string]audit.Status{}
	for _, e := range stageEvents(h.events.BySession("sess-1")) {
		byStage[e.Stage] = e.Status
	}
	assert.Equal(t, audit.StatusSuccess, byStage[string(StageDryRun)])
	assert.Equal(t, audit.StatusSuccess, byStage[string(StageExecution)])
}

func TestRun_AuditSequencesAreGapless(t *testing.T) {
	gw := &fakeGateway{}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	_, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(false))
	require.NoError(t, err)

	events := h.events.BySession("sess-1")
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestRun_ComplianceVetoReturnsToPlanDraft(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true},
		fakeReviewer{approve: false, reason: "production region requires change ticket"})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)

	assert.Equal(t, StagePlanDraft, report.Stage)
	assert.Contains(t, report.Summary, "change ticket")
	assert.False(t, report.Escalated, "first veto does not escalate")
	assert.Zero(t, h.gw.total(), "vetoed plan must not reach the gateway")

	// The same plan content vetoed again crosses the threshold.
	report, err = h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	assert.True(t, report.Escalated)
}

func TestRun_VetoPrecedenceOverDryRunFailure(t *testing.T) {
	gw := &fakeGateway{fail: map[string]error{
		"list_s3_objects": errors.New("bucket unreachable"),
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	h.engine.SubmitVeto("sess-1", "deployment window closed")
	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(false))
	require.NoError(t, err)

	assert.Equal(t, StagePlanDraft, report.Stage)
	assert.Contains(t, report.Summary, "deployment window closed",
		"compliance veto wins over the dry-run failure")

	var sawVeto bool
	for _, e := range stageEvents(h.events.BySession("sess-1")) {
		if e.Status == audit.StatusVeto {
			sawVeto = true
		}
	}
	assert.True(t, sawVeto)
}

func TestRun_DryRunRetriesOnceThenProceeds(t *testing.T) {
	gw := &fakeGateway{failOnce: map[string]error{
		"list_s3_objects": errors.New("transient timeout"),
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(false))
	require.NoError(t, err)

	assert.Equal(t, StageClosure, report.Stage)
	// Preview runs during the failed attempt, the retry, and once more as
	// the validation step.
	assert.Len(t, gw.calls("list_s3_objects"), 3)
}

func TestRun_DryRunFailureReturnsToPlanDraft(t *testing.T) {
	gw := &fakeGateway{fail: map[string]error{
		"describe_images": errors.New("InvalidAMIID.NotFound"),
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(true))
	require.NoError(t, err)

	assert.Equal(t, StagePlanDraft, report.Stage)
	assert.Contains(t, report.Summary, "Dry run failed")
	assert.Zero(t, len(gw.calls("deploy_ec2_repo")), "execution must not start after a failed dry run")
}

func TestRun_ExecutionFailureRollsBackAndEscalates(t *testing.T) {
	gw := &fakeGateway{fail: map[string]error{
		"deploy_ec2_repo": errors.New("AccessDenied: iam permission ec2:RunInstances missing"),
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(true))
	require.NoError(t, err)

	assert.Equal(t, StageFailed, report.Stage)
	assert.True(t, report.Escalated)
	assert.Contains(t, report.Summary, "AccessDenied")

	recs, err := h.store.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, deployments.StatusFailed, recs[0].Status)
}

func TestCompensate_IssuesConfirmedTerminateForLaunchedInstance(t *testing.T) {
	gw := &fakeGateway{}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	st := h.engine.stateFor("sess-1")
	st.stage = StageExecution
	st.completed = []completedStep{{
		step: Step{
			Name: "stage-artifact-and-launch",
			Kind: StepProvision,
			Call: Call{Action: "deploy_ec2_repo", Params: map[string]any{"region": "us-east-1"}},
		},
		result: map[string]any{"ec2_launch": map[string]any{"instance_ids": []any{"i-0abc"}}},
	}}

	report := &Report{SessionID: "sess-1"}
	issued, err := h.engine.compensate(context.Background(), "sess-1", st, report)
	require.NoError(t, err)
	assert.Equal(t, 1, issued)

	calls := gw.calls("terminate_ec2")
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Confirm, "compensating destructive actions carry confirm")
	assert.Equal(t, "i-0abc", calls[0].Params["instance_id"])
}

func TestRun_CancellationBeforeDestructiveWorkFails(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true}, fakeReviewer{approve: true})

	h.engine.Cancel("sess-1")
	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)

	assert.Equal(t, StageFailed, report.Stage)
	assert.Equal(t, "Deployment cancelled.", report.Summary)
	assert.Zero(t, h.gw.total())
}

func TestRun_ValidationFailureFails(t *testing.T) {
	gw := &fakeGateway{fail: map[string]error{
		"invoke_lambda": errors.New("function returned 500"),
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)

	assert.Equal(t, StageFailed, report.Stage)
	assert.Contains(t, report.Summary, "validation failed")

	recs, err := h.store.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, deployments.StatusFailed, recs[0].Status)
}

func TestRun_PreflightRejectsBadRepoURL(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true}, fakeReviewer{approve: true})

	intent := lambdaIntent()
	intent.RepoURL = "not-a-repo"
	report, err := h.engine.Run(context.Background(), "sess-1", intent)
	require.NoError(t, err)

	assert.Equal(t, StageFailed, report.Stage)
	assert.Contains(t, report.Summary, "Preflight")
}

func TestRun_VetoAfterCompletionDoesNotTaintNextPipeline(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	require.Equal(t, StageClosure, report.Stage)

	// The veto targets a pipeline that already finished; a fresh run of
	// the same intent must not inherit it.
	h.engine.SubmitVeto("sess-1", "too late")
	report, err = h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	assert.Equal(t, StageClosure, report.Stage)
	assert.False(t, report.Escalated)
}

func TestRun_CancelAfterCompletionIsIgnored(t *testing.T) {
	h := newEngineHarness(t, &fakeGateway{}, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	require.Equal(t, StageClosure, report.Stage)

	h.engine.Cancel("sess-1")
	report, err = h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	assert.Equal(t, StageClosure, report.Stage)
}

func TestRun_CancellationDuringValidationStillCompletes(t *testing.T) {
	gw := &fakeGateway{}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	// A cancel landing while the validation call is in flight finds the
	// deployment already executed; the pipeline finishes normally.
	gw.hook = func(req gateway.Request) {
		if req.Action == "invoke_lambda" {
			h.engine.Cancel("sess-1")
		}
	}

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	assert.Equal(t, StageClosure, report.Stage)
}

func TestRun_ZeroDryRunRetriesFailsAfterSingleAttempt(t *testing.T) {
	gw := &fakeGateway{failOnce: map[string]error{
		"list_s3_objects": errors.New("transient timeout"),
	}}
	if gw.fail == nil {
		gw.fail = make(map[string]error)
	}

	events := audit.NewMemory()
	store := deployments.NewMemoryStore()
	sessions := session.NewManager(0, logging.NewNop())
	engine, err := NewEngine(gw, fakeCreds{present: true}, fakeReviewer{approve: true},
		events, sessions, store, catalog.Default(), logging.NewNop(),
		config.WorkflowConfig{DryRunRetries: retryCount(0), VetoThreshold: 2})
	require.NoError(t, err)

	report, err := engine.Run(context.Background(), "sess-1", ec2Intent(false))
	require.NoError(t, err)

	assert.Equal(t, StagePlanDraft, report.Stage)
	assert.Contains(t, report.Summary, "Dry run failed")
	var previews int
	for _, req := range gw.calls("list_s3_objects") {
		if req.Planning {
			previews++
		}
	}
	assert.Equal(t, 1, previews, "zero retries means exactly one preview attempt")
}

func TestRun_PreviewCallsCarryPlanningFlag(t *testing.T) {
	gw := &fakeGateway{data: map[string]map[string]any{
		"deploy_ec2_repo": {"ec2_launch": map[string]any{"instance_ids": []any{"i-0abc"}}},
	}}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", ec2Intent(true))
	require.NoError(t, err)
	require.Equal(t, StageClosure, report.Stage)

	previews := gw.calls("describe_images")
	require.NotEmpty(t, previews)
	for _, req := range previews {
		assert.True(t, req.Planning, "dry-run previews consume the planning budget")
	}
	for _, req := range gw.calls("deploy_ec2_repo") {
		assert.False(t, req.Planning, "execution steps are not planning calls")
	}
}

func TestRun_SessionReopensAfterTerminalStage(t *testing.T) {
	gw := &fakeGateway{}
	h := newEngineHarness(t, gw, fakeCreds{present: true}, fakeReviewer{approve: true})

	report, err := h.engine.Run(context.Background(), "sess-1", lambdaIntent())
	require.NoError(t, err)
	require.Equal(t, StageClosure, report.Stage)

	report, err = h.engine.Run(context.Background(), "sess-1", ec2Intent(false))
	require.NoError(t, err)
	assert.Equal(t, StageClosure, report.Stage)

	recs, err := h.store.List(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
