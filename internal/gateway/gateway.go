// Package gateway is the single choke point for every external effectful
// call. It enforces the closed action catalog, confirmation for destructive
// actions, per-caller rate limits, a global in-flight cap, shell timeouts,
// and redaction of results, and emits exactly one audit event and one
// permanent invocation record per call.
package gateway

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/secrets"
)

const instrumentationName = "github.com/fyrsmithlabs/deployd/internal/gateway"

// Request describes one invocation.
type Request struct {
	SessionID string
	Action    string
	Params    map[string]any
	Confirm   bool

	// Planning marks calls triggered by plan drafting; they consume the
	// per-session planning bucket in addition to the external bucket.
	Planning bool

	// Stage is the workflow stage issuing the call, recorded in audit.
	Stage string

	CorrelationID string
}

// Result is the redacted, summarized outcome returned to callers.
type Result struct {
	Action     string         `json:"action"`
	Outcome    Outcome        `json:"outcome"`
	Data       map[string]any `json:"data,omitempty"`
	Invocation ToolInvocation `json:"invocation"`
}

// Runner executes an action against its backing system. Implementations
// receive credential material for exactly one call and must not retain it.
type Runner interface {
	Run(ctx context.Context, action string, params map[string]any, material credentials.Material) (map[string]any, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, action string, params map[string]any, material credentials.Material) (map[string]any, error)

func (f RunnerFunc) Run(ctx context.Context, action string, params map[string]any, material credentials.Material) (map[string]any, error) {
	return f(ctx, action, params, material)
}

// Broker resolves per-session credentials.
type Broker interface {
	Resolve(ctx context.Context, sessionID string) (*credentials.Handle, error)
}

// Service mediates all tool invocations.
type Service struct {
	catalog  *catalog.Catalog
	broker   Broker
	limiters *Limiters
	log      InvocationLog
	sink     audit.Sink
	scrubber secrets.Scrubber
	logger   *logging.Logger

	runners      map[catalog.Class]Runner
	shellTimeout time.Duration

	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	queued      metric.Int64UpDownCounter
}

// NewService creates the gateway. All dependencies are required except the
// scrubber, which defaults to the standard rule set.
func NewService(
	cat *catalog.Catalog,
	broker Broker,
	limiters *Limiters,
	log InvocationLog,
	sink audit.Sink,
	scrubber secrets.Scrubber,
	logger *logging.Logger,
	cfg config.GatewayConfig,
) (*Service, error) {
	if cat == nil {
		return nil, errors.New("gateway: catalog is required")
	}
	if broker == nil {
		return nil, errors.New("gateway: credential broker is required")
	}
	if limiters == nil {
		return nil, errors.New("gateway: limiters are required")
	}
	if log == nil {
		return nil, errors.New("gateway: invocation log is required")
	}
	if sink == nil {
		return nil, errors.New("gateway: audit sink is required")
	}
	if scrubber == nil {
		scrubber = secrets.MustNew(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	shellTimeout := cfg.ShellTimeout.Duration()
	if shellTimeout <= 0 {
		shellTimeout = 120 * time.Second
	}

	s := &Service{
		catalog:      cat,
		broker:       broker,
		limiters:     limiters,
		log:          log,
		sink:         sink,
		scrubber:     scrubber,
		logger:       logger.Named("gateway"),
		runners:      make(map[catalog.Class]Runner),
		shellTimeout: shellTimeout,
	}
	s.initMetrics()
	return s, nil
}

// RegisterRunner binds a runner to an action class. The repository
// composites register after construction because they invoke the gateway
// recursively for their delegated steps.
func (s *Service) RegisterRunner(class catalog.Class, runner Runner) {
	s.runners[class] = runner
}

func (s *Service) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	s.invocations, err = meter.Int64Counter(
		"deployd.gateway.invocations_total",
		metric.WithDescription("Tool invocations labeled by action and outcome."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create invocations counter", zap.Error(err))
	}

	s.duration, err = meter.Float64Histogram(
		"deployd.gateway.invocation_duration_seconds",
		metric.WithDescription("Invocation latency labeled by action and outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 120.0),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}

	s.queued, err = meter.Int64UpDownCounter(
		"deployd.gateway.inflight_invocations",
		metric.WithDescription("Invocations currently holding an in-flight slot."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create inflight gauge", zap.Error(err))
	}
}

// Invoke executes one action. Every call, whatever its outcome, produces
// exactly one audit event and one invocation record.
func (s *Service) Invoke(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	inv := ToolInvocation{
		ID:            uuid.New().String(),
		SessionID:     req.SessionID,
		Action:        req.Action,
		Params:        SanitizeParams(req.Params),
		Confirm:       req.Confirm,
		CorrelationID: req.CorrelationID,
		StartedAt:     started.UTC(),
	}
	if inv.CorrelationID == "" {
		inv.CorrelationID = inv.ID
	}
	req.CorrelationID = inv.CorrelationID

	callCtx := logging.WithCorrelationID(logging.WithSessionID(ctx, req.SessionID), req.CorrelationID)
	data, err := s.invoke(WithParentRequest(callCtx, req), req)

	inv.CompletedAt = time.Now().UTC()
	inv.Outcome = outcomeOf(err)
	if err != nil {
		inv.ErrorCode = ErrorCode(err)
		inv.Error = s.scrubber.Scrub(err.Error()).Scrubbed
	}
	s.finish(ctx, req, inv, time.Since(started))

	if err != nil {
		return &Result{Action: req.Action, Outcome: inv.Outcome, Invocation: inv}, err
	}
	return &Result{Action: req.Action, Outcome: OutcomeSuccess, Data: data, Invocation: inv}, nil
}

// invoke runs the guarded path and returns the scrubbed, summarized result.
func (s *Service) invoke(ctx context.Context, req Request) (map[string]any, error) {
	def, err := s.catalog.Lookup(req.Action)
	if err != nil {
		return nil, err
	}
	if def.Validate != nil {
		if err := def.Validate(req.Params); err != nil {
			return nil, err
		}
	}
	if def.Destructive && !req.Confirm {
		return nil, ErrConfirmationRequired
	}

	if req.Planning {
		if err := s.limiters.WaitPlanning(ctx, req.SessionID); err != nil {
			return nil, fmt.Errorf("planning rate limit wait: %w", err)
		}
	}
	if def.Class == catalog.ClassExternal {
		if err := s.limiters.WaitExternal(ctx, req.SessionID); err != nil {
			return nil, fmt.Errorf("external rate limit wait: %w", err)
		}
	}

	if err := s.limiters.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("in-flight slot wait: %w", err)
	}
	defer s.limiters.Release()
	if s.queued != nil {
		s.queued.Add(ctx, 1)
		defer s.queued.Add(ctx, -1)
	}

	runner, ok := s.runners[def.Class]
	if !ok {
		return nil, &ToolFailure{Action: req.Action, Err: fmt.Errorf("no runner registered for class %s", def.Class)}
	}

	handle, err := s.broker.Resolve(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	material, err := handle.Material()
	if err != nil {
		handle.Discard()
		return nil, err
	}

	runCtx := ctx
	if def.Class == catalog.ClassShell {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.shellTimeout)
		defer cancel()
	}

	raw, runErr := runner.Run(runCtx, req.Action, req.Params, material)
	// The handle never outlives the call.
	handle.Discard()

	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		var failure *ToolFailure
		if errors.As(runErr, &failure) {
			failure.Remediation = s.scrubber.Scrub(failure.Remediation).Scrubbed
			return nil, failure
		}
		return nil, &ToolFailure{Action: req.Action, Err: runErr}
	}

	scrubbed, _ := s.scrubber.ScrubValue(raw).(map[string]any)
	summarized, _ := summarizeResult(scrubbed).(map[string]any)
	return summarized, nil
}

// finish records the invocation and emits its audit event.
func (s *Service) finish(ctx context.Context, req Request, inv ToolInvocation, latency time.Duration) {
	if err := s.log.Append(ctx, inv); err != nil {
		s.logger.Error(ctx, "failed to append invocation record",
			zap.String("invocation_id", inv.ID), zap.Error(err))
	}

	s.sink.Emit(ctx, audit.Event{
		SessionID:     req.SessionID,
		Stage:         req.Stage,
		Tool:          req.Action,
		Status:        auditStatus(inv.Outcome),
		LatencyMS:     latency.Milliseconds(),
		ErrorCode:     inv.ErrorCode,
		CorrelationID: inv.CorrelationID,
	})

	attrs := metric.WithAttributes(
		attribute.String("action", req.Action),
		attribute.String("outcome", string(inv.Outcome)),
	)
	if s.invocations != nil {
		s.invocations.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, latency.Seconds(), attrs)
	}

	s.logger.Info(ctx, "tool invocation completed",
		zap.String("action", req.Action),
		zap.String("session_id", req.SessionID),
		zap.String("outcome", string(inv.Outcome)),
		zap.String("error_code", inv.ErrorCode),
		zap.Duration("latency", latency))
}

func outcomeOf(err error) Outcome {
	switch ErrorCode(err) {
	case "":
		return OutcomeSuccess
	case CodeTimeout:
		return OutcomeTimeout
	case CodeToolFailure:
		return OutcomeFailure
	default:
		return OutcomeDenied
	}
}

func auditStatus(outcome Outcome) audit.Status {
	switch outcome {
	case OutcomeSuccess:
		return audit.StatusSuccess
	case OutcomeTimeout:
		return audit.StatusTimeout
	case OutcomeDenied:
		return audit.StatusDenied
	default:
		return audit.StatusFailure
	}
}
