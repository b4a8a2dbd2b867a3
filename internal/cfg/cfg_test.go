package cfg

import (
	"flag"
	"math"
	"reflect"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		Environment:           "production",
		GroupLabels:           "checker,host",
		PromWarnAbove:         80,
		PromCritAbove:         95,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.Environment != "production" {
		t.Errorf("Environment = %q, want production", c.Environment)
	}
	if !c.IncidentAutoCreate {
		t.Error("IncidentAutoCreate = false, want true by default")
	}
	if c.GroupLabels != "checker,host" {
		t.Errorf("GroupLabels = %q", c.GroupLabels)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-environment", "staging",
		"-database-url", "postgres://localhost/beacon",
		"-pipeline-file", "/etc/beacon/pipeline.yaml",
		"-incident-auto-create=false",
		"-webhook-token", "tok",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.Environment != "staging" {
		t.Errorf("Environment = %q, want staging", c.Environment)
	}
	if c.DatabaseURL != "postgres://localhost/beacon" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.PipelineFile != "/etc/beacon/pipeline.yaml" {
		t.Errorf("PipelineFile = %q", c.PipelineFile)
	}
	if c.IncidentAutoCreate {
		t.Error("IncidentAutoCreate = true, want false")
	}
	if c.WebhookToken != "tok" {
		t.Errorf("WebhookToken = %q", c.WebhookToken)
	}
}

func TestGroupLabelList(t *testing.T) {
	t.Parallel()

	c := Config{GroupLabels: " checker , host ,,cluster"}
	got := c.GroupLabelList()
	want := []string{"checker", "host", "cluster"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupLabelList() = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "minimum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			mutate: func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535
			},
			wantErr: false,
		},
		{
			name:      "drain zero",
			mutate:    func(c *Config) { c.DrainSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			mutate:    func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 },
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "budget zero",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = 0 },
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget equals drain",
			mutate:    func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds },
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "port zero",
			mutate:    func(c *Config) { c.APIPort = 0 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			mutate:    func(c *Config) { c.APIPort = 65536 },
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "empty environment",
			mutate:    func(c *Config) { c.Environment = "" },
			wantErr:   true,
			errSubstr: []string{"ENVIRONMENT"},
		},
		{
			name:      "no group labels",
			mutate:    func(c *Config) { c.GroupLabels = " , " },
			wantErr:   true,
			errSubstr: []string{"INCIDENT_GROUP_LABELS"},
		},
		{
			name:      "claude key without model",
			mutate:    func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "sk-x", "" },
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:    "claude disabled needs no model",
			mutate:  func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "", "" },
			wantErr: false,
		},
		{
			name:      "resend without envelope",
			mutate:    func(c *Config) { c.ResendAPIKey = "re-x" },
			wantErr:   true,
			errSubstr: []string{"EMAIL_FROM", "EMAIL_TO"},
		},
		{
			name: "resend with envelope",
			mutate: func(c *Config) {
				c.ResendAPIKey, c.EmailFrom, c.EmailTo = "re-x", "beacon@example.com", "ops@example.com"
			},
			wantErr: false,
		},
		{
			name:      "prometheus without query",
			mutate:    func(c *Config) { c.PrometheusEndpoint = "http://prom:9090" },
			wantErr:   true,
			errSubstr: []string{"PROM_CHECK_QUERY"},
		},
		{
			name:      "crit below warn",
			mutate:    func(c *Config) { c.PromWarnAbove, c.PromCritAbove = 90, 80 },
			wantErr:   true,
			errSubstr: []string{"PROM_CRIT_ABOVE"},
		},
		{
			name:      "loki without query",
			mutate:    func(c *Config) { c.LokiEndpoint = "http://loki:3100" },
			wantErr:   true,
			errSubstr: []string{"LOG_CHECK_QUERY"},
		},
		{
			name: "loki with query",
			mutate: func(c *Config) {
				c.LokiEndpoint, c.LogCheckQuery = "http://loki:3100", `{job="beacon"} |= "error"`
			},
			wantErr: false,
		},
		{
			name:      "log crit below warn",
			mutate:    func(c *Config) { c.LogWarnAbove, c.LogCritAbove = 50, 10 },
			wantErr:   true,
			errSubstr: []string{"LOG_CRIT_ABOVE"},
		},
		{
			name: "all budgets invalid accumulate",
			mutate: func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 0, 0, 0
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
		{
			name: "extreme negative values",
			mutate: func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validBase()
			tt.mutate(&c)

			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	seeds := []struct {
		drain, budget, port int
		environment         string
	}{
		{60, 90, 8080, "production"},
		{1, 2, 1, "test"},
		{299, 300, 65535, "ci"},
		{0, 0, 0, ""},
		{-1, -1, -1, ""},
		{300, 300, 65535, "production"},
		{301, 302, 65536, ""},
		{150, 100, 8080, "staging"},
		{math.MinInt32, math.MinInt32, math.MinInt32, ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.environment)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, environment string) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.Environment = environment

		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		envOK := environment != ""

		allValid := drainOK && budgetOK && portOK && crossOK && envOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
