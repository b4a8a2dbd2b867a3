package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config holds beacon's application-level configuration. Ambient concerns
// (http server, logging, ops listener, tracing, profiling) register their own
// flag sets.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	Environment           string
	WebhookToken          string
	DatabaseURL           string
	PipelineFile          string
	IncidentAutoCreate    bool
	GroupLabels           string
	ClaudeAPIKey          string
	ClaudeModel           string
	SlackWebhookURL       string
	ResendAPIKey          string
	EmailFrom             string
	EmailTo               string
	PrometheusEndpoint    string
	PromCheckQuery        string
	PromWarnAbove         float64
	PromCritAbove         float64
	LokiEndpoint          string
	LokiTenantID          string
	LogCheckQuery         string
	LogWarnAbove          int
	LogCritAbove          int
	HealthCheckURL        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.Environment, "environment", "production", "deployment environment (production, staging, test, ci)")
	fs.StringVar(&c.WebhookToken, "webhook-token", "", "token required on alert ingest requests (empty = unauthenticated)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.PipelineFile, "pipeline-file", "", "pipeline definition YAML (empty = built-in default pipeline)")
	fs.BoolVar(&c.IncidentAutoCreate, "incident-auto-create", true, "create incidents for new critical/warning alerts")
	fs.StringVar(&c.GroupLabels, "incident-group-labels", "checker,host", "comma-separated label names forming the incident group key")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude analysis provider (empty = provider disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL; seeds a default slack channel when no channels exist")
	fs.StringVar(&c.ResendAPIKey, "resend-api-key", "", "Resend API key for the email notification driver")
	fs.StringVar(&c.EmailFrom, "email-from", "", "sender address for the seeded email channel")
	fs.StringVar(&c.EmailTo, "email-to", "", "comma-separated recipients for the seeded email channel")
	fs.StringVar(&c.PrometheusEndpoint, "prometheus-endpoint", "", "Prometheus endpoint for the promquery checker")
	fs.StringVar(&c.PromCheckQuery, "prom-check-query", "", "PromQL instant query evaluated by the promquery checker")
	fs.Float64Var(&c.PromWarnAbove, "prom-warn-above", 80, "promquery warning threshold")
	fs.Float64Var(&c.PromCritAbove, "prom-crit-above", 95, "promquery critical threshold")
	fs.StringVar(&c.LokiEndpoint, "loki-endpoint", "", "Loki endpoint for the logquery checker")
	fs.StringVar(&c.LokiTenantID, "loki-tenant-id", "", "Loki tenant ID (X-Scope-OrgID), empty for single-tenant")
	fs.StringVar(&c.LogCheckQuery, "log-check-query", "", "LogQL query evaluated by the logquery checker")
	fs.IntVar(&c.LogWarnAbove, "log-warn-above", 10, "logquery warning threshold (matched lines)")
	fs.IntVar(&c.LogCritAbove, "log-crit-above", 100, "logquery critical threshold (matched lines)")
	fs.StringVar(&c.HealthCheckURL, "health-check-url", "", "URL probed by the api_health checker")
}

// GroupLabelList splits the configured group labels.
func (c *Config) GroupLabelList() []string {
	var out []string
	for _, l := range strings.Split(c.GroupLabels, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// EmailToList splits the configured email recipients.
func (c *Config) EmailToList() []string {
	var out []string
	for _, a := range strings.Split(c.EmailTo, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.Environment == "" {
		errs = append(errs, errors.New("ENVIRONMENT must not be empty"))
	}

	if len(c.GroupLabelList()) == 0 {
		errs = append(errs, errors.New("INCIDENT_GROUP_LABELS must name at least one label"))
	}

	// Model is only meaningful when the provider is enabled
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	// The email channel needs both sides of the envelope
	if c.ResendAPIKey != "" {
		if c.EmailFrom == "" {
			errs = append(errs, errors.New("EMAIL_FROM is required when RESEND_API_KEY is set"))
		}
		if len(c.EmailToList()) == 0 {
			errs = append(errs, errors.New("EMAIL_TO is required when RESEND_API_KEY is set"))
		}
	}

	// The promquery checker needs a query to evaluate
	if c.PrometheusEndpoint != "" && c.PromCheckQuery == "" {
		errs = append(errs, errors.New("PROM_CHECK_QUERY is required when PROMETHEUS_ENDPOINT is set"))
	}
	if c.PromCritAbove < c.PromWarnAbove {
		errs = append(errs, fmt.Errorf("PROM_CRIT_ABOVE %g must be >= PROM_WARN_ABOVE %g", c.PromCritAbove, c.PromWarnAbove))
	}

	// Same deal for the logquery checker
	if c.LokiEndpoint != "" && c.LogCheckQuery == "" {
		errs = append(errs, errors.New("LOG_CHECK_QUERY is required when LOKI_ENDPOINT is set"))
	}
	if c.LogCritAbove < c.LogWarnAbove {
		errs = append(errs, fmt.Errorf("LOG_CRIT_ABOVE %d must be >= LOG_WARN_ABOVE %d", c.LogCritAbove, c.LogWarnAbove))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
