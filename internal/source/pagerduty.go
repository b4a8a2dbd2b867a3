package source

import (
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// PagerDuty parses PagerDuty v3 webhook events: an event envelope whose
// event_type encodes the incident transition.
type PagerDuty struct {
	baseDriver
	now func() time.Time
}

// NewPagerDuty creates the PagerDuty driver.
func NewPagerDuty() *PagerDuty {
	return &PagerDuty{now: time.Now}
}

func (*PagerDuty) Name() string { return "pagerduty" }

func (*PagerDuty) Validate(payload map[string]any) bool {
	event := subMap(payload, "event")
	if event == nil {
		return false
	}
	return strings.HasPrefix(str(event, "event_type"), "incident.")
}

func (d *PagerDuty) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	event := subMap(payload, "event")
	data := subMap(event, "data")
	eventType := str(event, "event_type")

	status := alert.StatusFiring
	switch {
	case strings.HasSuffix(eventType, ".resolved"),
		strings.HasSuffix(eventType, ".acknowledged"):
		status = alert.StatusResolved
	default:
		if s := strings.ToLower(str(data, "status")); s == "resolved" || s == "acknowledged" {
			status = alert.StatusResolved
		}
	}

	name := str(data, "title", "summary")

	labels := map[string]string{"source": d.Name()}
	if svc := subMap(data, "service"); svc != nil {
		if sn := str(svc, "summary", "name"); sn != "" {
			labels["service"] = sn
		}
	}
	if urgency := str(data, "urgency"); urgency != "" {
		labels["urgency"] = urgency
	}

	severity := priorityTierSeverity(pdPriority(data))
	if _, hasPriority := data["priority"]; !hasPriority {
		// no priority object: fall back to urgency
		switch strings.ToLower(str(data, "urgency")) {
		case "high":
			severity = alert.SeverityCritical
		case "low":
			severity = alert.SeverityInfo
		default:
			severity = alert.SeverityWarning
		}
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      status,
		Severity:    severity,
		Description: str(data, "description", "title"),
		Labels:      labels,
		Annotations: map[string]string{"event_type": eventType},
		StartedAt:   parseTime(event["occurred_at"]),
		RawPayload:  payload,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if status == alert.StatusResolved {
		ended := na.StartedAt
		na.EndedAt = &ended
	}

	// native incident id, else generated
	na.Fingerprint = str(data, "id")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}

	return &alert.NormalizedPayload{
		Source:     d.Name(),
		Alerts:     []alert.NormalizedAlert{na},
		RawPayload: payload,
	}, nil
}

// pdPriority digs the P-tier out of the nested priority object.
func pdPriority(data map[string]any) string {
	if p := subMap(data, "priority"); p != nil {
		return str(p, "summary", "name")
	}
	return ""
}
