package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
	"github.com/fyrsmithlabs/deployd/internal/logging"
	"github.com/fyrsmithlabs/deployd/internal/session"
	"github.com/fyrsmithlabs/deployd/internal/workflow"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func errorJSON(c echo.Context, status int, detail, code string) error {
	return c.JSON(status, ErrorResponse{Type: "error", Detail: detail, Code: code})
}

// MessageRequest carries one user turn plus the structured deployment
// intent extracted from it.
type MessageRequest struct {
	Message string          `json:"message"`
	Intent  workflow.Intent `json:"intent"`
}

// AgentResponse is the pipeline's answer to a message.
type AgentResponse struct {
	Type             string   `json:"type"`
	FinalAnswer      string   `json:"final_answer"`
	ThoughtProcess   []string `json:"thought_process,omitempty"`
	Stage            string   `json:"stage"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	NeedsCredentials bool     `json:"needs_credentials,omitempty"`
	Escalated        bool     `json:"escalated,omitempty"`
	DeploymentID     string   `json:"deployment_id,omitempty"`
}

func (s *Server) handleMessage(c echo.Context) error {
	sessionID := c.Param("id")
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body", "")
	}

	ctx := logging.WithSessionID(c.Request().Context(), sessionID)
	sess := s.deps.Sessions.GetOrCreate(sessionID)
	if req.Message != "" {
		sess.Append(session.Turn{Role: session.RoleUser, Content: req.Message, Timestamp: time.Now().UTC()})
	}

	report, err := s.deps.Pipeline.Run(ctx, sessionID, req.Intent)
	if err != nil {
		s.logger.Error(ctx, "pipeline run failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, err.Error(), "")
	}

	sess.Append(session.Turn{Role: session.RoleAssistant, Content: report.Summary, Timestamp: time.Now().UTC()})

	return c.JSON(http.StatusOK, AgentResponse{
		Type:             "agent_response",
		FinalAnswer:      report.Summary,
		ThoughtProcess:   report.Notes,
		Stage:            string(report.Stage),
		MissingFields:    report.MissingFields,
		NeedsCredentials: report.NeedsCredentials,
		Escalated:        report.Escalated,
		DeploymentID:     report.DeploymentID,
	})
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Sessions.Statuses())
}

// AcceptedResponse acknowledges an asynchronous control action.
type AcceptedResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleCancel(c echo.Context) error {
	s.deps.Pipeline.Cancel(c.Param("id"))
	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "cancellation requested"})
}

// VetoRequest carries a compliance veto reason.
type VetoRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleVeto(c echo.Context) error {
	var req VetoRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body", "")
	}
	if req.Reason == "" {
		return errorJSON(c, http.StatusBadRequest, "reason is required", "")
	}
	s.deps.Pipeline.SubmitVeto(c.Param("id"), req.Reason)
	return c.JSON(http.StatusAccepted, AcceptedResponse{Status: "veto submitted"})
}

// InvokeRequest is an ad-hoc operator tool call.
type InvokeRequest struct {
	SessionID string         `json:"session_id"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Confirm   bool           `json:"confirm"`
}

func (s *Server) handleInvoke(c echo.Context) error {
	var req InvokeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body", "")
	}
	if req.SessionID == "" || req.Action == "" {
		return errorJSON(c, http.StatusBadRequest, "session_id and action are required", "")
	}

	result, err := s.deps.Gateway.Invoke(c.Request().Context(), gateway.Request{
		SessionID: req.SessionID,
		Action:    req.Action,
		Params:    req.Params,
		Confirm:   req.Confirm,
		Stage:     "manual",
	})
	if err != nil {
		code := gateway.ErrorCode(err)
		return errorJSON(c, invokeStatus(code), err.Error(), code)
	}
	return c.JSON(http.StatusOK, result)
}

// invokeStatus maps gateway error codes to HTTP statuses. Confirmation
// refusals are conflicts so clients can re-submit with confirm set.
func invokeStatus(code string) int {
	switch code {
	case gateway.CodeConfirmationRequired:
		return http.StatusConflict
	case gateway.CodeValidation:
		return http.StatusBadRequest
	case gateway.CodeUnsupportedAction:
		return http.StatusNotFound
	case gateway.CodeCredentialsMissing:
		return http.StatusPreconditionFailed
	case gateway.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleCredentialStatus(c echo.Context) error {
	status, err := s.deps.Broker.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error(), "")
	}
	return c.JSON(http.StatusOK, status)
}

// CredentialsRequest carries credential material inbound. The response
// never echoes any of these fields.
type CredentialsRequest struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

func (s *Server) handleCredentialStore(c echo.Context) error {
	sessionID := c.Param("id")
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body", "")
	}
	if req.AccessKeyID == "" || req.SecretAccessKey == "" {
		return errorJSON(c, http.StatusBadRequest, "access_key_id and secret_access_key are required", "")
	}

	material := credentials.Material{
		AccessKeyID:     config.Secret(req.AccessKeyID),
		SecretAccessKey: config.Secret(req.SecretAccessKey),
		SessionToken:    config.Secret(req.SessionToken),
	}
	if err := s.deps.Broker.Store(c.Request().Context(), sessionID, material); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error(), "")
	}
	return c.NoContent(http.StatusNoContent)
}

const defaultDeploymentLimit = 20

func (s *Server) handleListDeployments(c echo.Context) error {
	limit := defaultDeploymentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return errorJSON(c, http.StatusBadRequest, "limit must be a positive integer", "")
		}
		limit = parsed
	}

	records, err := s.deps.History.List(c.Request().Context(), c.QueryParam("session_id"), limit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error(), "")
	}
	return c.JSON(http.StatusOK, records)
}
