package source

import (
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// NewRelic parses New Relic alert condition webhooks: a flat incident
// payload keyed by current_state and condition/policy names.
type NewRelic struct {
	baseDriver
	now func() time.Time
}

// NewNewRelic creates the New Relic driver.
func NewNewRelic() *NewRelic {
	return &NewRelic{now: time.Now}
}

func (*NewRelic) Name() string { return "newrelic" }

func (*NewRelic) Validate(payload map[string]any) bool {
	if str(payload, "current_state") == "" {
		return false
	}
	return str(payload, "condition_name") != "" || str(payload, "policy_name") != ""
}

func (d *NewRelic) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	name := str(payload, "condition_name", "policy_name")

	status := alert.StatusFiring
	switch strings.ToLower(str(payload, "current_state")) {
	case "closed", "acknowledged":
		status = alert.StatusResolved
	}

	labels := map[string]string{"source": d.Name()}
	if policy := str(payload, "policy_name"); policy != "" {
		labels["policy"] = policy
	}
	if condition := str(payload, "condition_name"); condition != "" {
		labels["condition"] = condition
	}
	for i, item := range list(payload, "targets") {
		target, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if n := str(target, "name"); n != "" && i == 0 {
			labels["target"] = n
		}
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      status,
		Severity:    mappedSeverity(str(payload, "severity")),
		Description: str(payload, "details", "condition_name"),
		Labels:      labels,
		StartedAt:   parseTime(payload["timestamp"]),
		RawPayload:  payload,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if status == alert.StatusResolved {
		ended := d.now().UTC()
		na.EndedAt = &ended
	}

	// native incident id, else generated
	na.Fingerprint = str(payload, "incident_id")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}

	return &alert.NormalizedPayload{
		Source:     d.Name(),
		Alerts:     []alert.NormalizedAlert{na},
		RawPayload: payload,
	}, nil
}

// mappedSeverity applies the fixed condition-platform table:
// critical/high critical, warning/medium warning, low/info info,
// default warning.
func mappedSeverity(raw string) alert.Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "high":
		return alert.SeverityCritical
	case "warning", "medium":
		return alert.SeverityWarning
	case "low", "info":
		return alert.SeverityInfo
	default:
		return alert.SeverityWarning
	}
}
