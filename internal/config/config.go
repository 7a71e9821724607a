// Package config provides configuration loading for deployd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and hardcoded defaults. It covers the HTTP server, the audit
// stream, persistence, gateway admission control, and workflow thresholds.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete deployd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Audit         AuditConfig         `koanf:"audit"`
	Mongo         MongoConfig         `koanf:"mongo"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Workflow      WorkflowConfig      `koanf:"workflow"`
	Credentials   CredentialsConfig   `koanf:"credentials"`
	Secrets       SecretsConfig       `koanf:"secrets"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	PingInterval    Duration `koanf:"ping_interval"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Insecure        bool   `koanf:"insecure"`
}

// AuditConfig holds audit stream configuration.
type AuditConfig struct {
	NATSURL       string   `koanf:"nats_url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	FlushTimeout  Duration `koanf:"flush_timeout"`
	BufferSize    int      `koanf:"buffer_size"`
	RetryInterval Duration `koanf:"retry_interval"`
}

// MongoConfig holds MongoDB persistence configuration.
type MongoConfig struct {
	URI                   Secret   `koanf:"uri"`
	Database              string   `koanf:"database"`
	CredentialsCollection string   `koanf:"credentials_collection"`
	DeploymentsCollection string   `koanf:"deployments_collection"`
	InvocationsCollection string   `koanf:"invocations_collection"`
	OpTimeout             Duration `koanf:"op_timeout"`
}

// GatewayConfig holds tool gateway admission control configuration.
type GatewayConfig struct {
	// ExternalRPS bounds external API calls per caller per second.
	ExternalRPS float64 `koanf:"external_rps"`
	// PlanningPerMinute bounds planning-triggered tool calls per session.
	PlanningPerMinute int `koanf:"planning_per_minute"`
	// MaxInFlight caps concurrent invocations across all sessions.
	MaxInFlight int `koanf:"max_in_flight"`
	// ShellTimeout is the wall-clock limit for shell-class invocations.
	ShellTimeout Duration `koanf:"shell_timeout"`
}

// WorkflowConfig holds workflow engine thresholds.
type WorkflowConfig struct {
	// DryRunRetries is how many times a failed dry run is re-attempted
	// before the failure is surfaced. A pointer so an explicit zero
	// (no retries) is distinguishable from an unset key.
	DryRunRetries *int `koanf:"dry_run_retries"`
	// VetoThreshold is how many compliance vetoes of the same plan
	// revision trigger human escalation.
	VetoThreshold int `koanf:"veto_threshold"`
	// StageTimeout bounds a single stage's gateway/broker waits.
	StageTimeout Duration `koanf:"stage_timeout"`
	// DeniedActions are catalog actions compliance review always rejects.
	DeniedActions []string `koanf:"denied_actions"`
	// AllowedRegions restricts plans to these regions. Empty allows any.
	AllowedRegions []string `koanf:"allowed_regions"`
}

// CredentialsConfig holds credential broker configuration.
type CredentialsConfig struct {
	// MasterKey encrypts credential material at rest. Must be 32 bytes
	// once decoded (AES-256-GCM).
	MasterKey Secret `koanf:"master_key"`
	// HandleTTL bounds how long a resolved handle stays valid.
	HandleTTL Duration `koanf:"handle_ttl"`
}

// SecretsConfig holds output scrubbing configuration. Scrubbing is on
// unless explicitly disabled.
type SecretsConfig struct {
	Disable bool `koanf:"disable"`
	// DeepScan enables the gitleaks-backed detector in addition to the
	// built-in rules.
	DeepScan bool `koanf:"deep_scan"`
}

// Default returns a configuration with production defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.PingInterval == 0 {
		cfg.Server.PingInterval = Duration(15 * time.Second)
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "deployd"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}

	if cfg.Audit.NATSURL == "" {
		cfg.Audit.NATSURL = "nats://localhost:4222"
	}
	if cfg.Audit.SubjectPrefix == "" {
		cfg.Audit.SubjectPrefix = "deployd.audit"
	}
	if cfg.Audit.FlushTimeout == 0 {
		cfg.Audit.FlushTimeout = Duration(2 * time.Second)
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1024
	}
	if cfg.Audit.RetryInterval == 0 {
		cfg.Audit.RetryInterval = Duration(5 * time.Second)
	}

	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "deployd"
	}
	if cfg.Mongo.CredentialsCollection == "" {
		cfg.Mongo.CredentialsCollection = "cloud_credentials"
	}
	if cfg.Mongo.DeploymentsCollection == "" {
		cfg.Mongo.DeploymentsCollection = "deployments"
	}
	if cfg.Mongo.InvocationsCollection == "" {
		cfg.Mongo.InvocationsCollection = "tool_invocations"
	}
	if cfg.Mongo.OpTimeout == 0 {
		cfg.Mongo.OpTimeout = Duration(5 * time.Second)
	}

	if cfg.Gateway.ExternalRPS == 0 {
		cfg.Gateway.ExternalRPS = 2
	}
	if cfg.Gateway.PlanningPerMinute == 0 {
		cfg.Gateway.PlanningPerMinute = 4
	}
	if cfg.Gateway.MaxInFlight == 0 {
		cfg.Gateway.MaxInFlight = 10
	}
	if cfg.Gateway.ShellTimeout == 0 {
		cfg.Gateway.ShellTimeout = Duration(120 * time.Second)
	}

	if cfg.Workflow.DryRunRetries == nil {
		retries := 1
		cfg.Workflow.DryRunRetries = &retries
	}
	if cfg.Workflow.VetoThreshold == 0 {
		cfg.Workflow.VetoThreshold = 2
	}
	if cfg.Workflow.StageTimeout == 0 {
		cfg.Workflow.StageTimeout = Duration(3 * time.Minute)
	}

	if cfg.Credentials.HandleTTL == 0 {
		cfg.Credentials.HandleTTL = Duration(30 * time.Second)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Gateway.ExternalRPS <= 0 {
		return errors.New("gateway external_rps must be positive")
	}
	if c.Gateway.PlanningPerMinute <= 0 {
		return errors.New("gateway planning_per_minute must be positive")
	}
	if c.Gateway.MaxInFlight <= 0 {
		return errors.New("gateway max_in_flight must be positive")
	}
	if c.Gateway.ShellTimeout.Duration() <= 0 {
		return errors.New("gateway shell_timeout must be positive")
	}
	if c.Workflow.DryRunRetries != nil && *c.Workflow.DryRunRetries < 0 {
		return errors.New("workflow dry_run_retries cannot be negative")
	}
	if c.Workflow.VetoThreshold < 1 {
		return errors.New("workflow veto_threshold must be at least 1")
	}
	if c.Credentials.MasterKey.IsSet() && len(c.Credentials.MasterKey.Value()) != 32 {
		return errors.New("credentials master_key must be exactly 32 bytes")
	}
	return nil
}
