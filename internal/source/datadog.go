package source

import (
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Datadog parses Datadog monitor webhooks: flat payloads with a comma
// separated tag string, a transition word, and lowercase p-tier priority.
type Datadog struct {
	baseDriver
	now func() time.Time
}

// NewDatadog creates the Datadog driver.
func NewDatadog() *Datadog {
	return &Datadog{now: time.Now}
}

func (*Datadog) Name() string { return "datadog" }

func (*Datadog) Validate(payload map[string]any) bool {
	if str(payload, "alert_id") != "" {
		return true
	}
	return str(payload, "alert_type") != "" && str(payload, "alert_transition") != ""
}

func (d *Datadog) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	name := str(payload, "alert_title", "title", "event_title")
	labels := tagLabels(str(payload, "tags"))
	if labels == nil {
		labels = map[string]string{}
	}
	labels["source"] = d.Name()
	if host := str(payload, "hostname", "host"); host != "" {
		labels["host"] = host
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      d.status(payload),
		Severity:    d.severity(payload),
		Description: str(payload, "body", "event_msg", "alert_title"),
		Labels:      labels,
		StartedAt:   parseTime(payload["date"]),
		RawPayload:  payload,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if na.Status == alert.StatusResolved {
		ended := d.now().UTC()
		na.EndedAt = &ended
	}

	// native monitor/alert id if present, else generated
	na.Fingerprint = str(payload, "alert_id", "id")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}

	return &alert.NormalizedPayload{
		Source:     d.Name(),
		Alerts:     []alert.NormalizedAlert{na},
		RawPayload: payload,
	}, nil
}

// status resolves on a recovery transition word or an ok/recovered status.
func (*Datadog) status(payload map[string]any) alert.Status {
	transition := strings.ToLower(str(payload, "alert_transition", "transition"))
	switch transition {
	case "recovered", "resolved":
		return alert.StatusResolved
	}
	switch strings.ToLower(str(payload, "alert_status", "status")) {
	case "ok", "recovered":
		return alert.StatusResolved
	}
	return alert.StatusFiring
}

// severity: alert_type "error" or a p1/high/critical priority is critical;
// p3/p4/low/info priorities are info; everything else warning.
func (*Datadog) severity(payload map[string]any) alert.Severity {
	alertType := strings.ToLower(str(payload, "alert_type"))
	priority := strings.ToLower(str(payload, "priority", "alert_priority"))

	if alertType == "error" {
		return alert.SeverityCritical
	}
	switch priority {
	case "p1", "high", "critical":
		return alert.SeverityCritical
	case "p3", "p4", "low", "info":
		return alert.SeverityInfo
	default:
		return alert.SeverityWarning
	}
}
