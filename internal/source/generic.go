package source

import (
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Generic is the catch-all driver. It accepts any payload that carries an
// alerts list or a recognizable name field, and applies the broadest
// field-name tolerance for status and severity.
type Generic struct {
	baseDriver
	now func() time.Time
}

// NewGeneric creates the generic fallback driver.
func NewGeneric() *Generic {
	return &Generic{now: time.Now}
}

func (*Generic) Name() string { return "generic" }

func (*Generic) Validate(payload map[string]any) bool {
	if list(payload, "alerts") != nil {
		return true
	}
	return str(payload, "name", "title", "alertname") != ""
}

func (d *Generic) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	out := &alert.NormalizedPayload{
		Source:      d.Name(),
		Version:     str(payload, "version"),
		GroupKey:    str(payload, "groupKey", "group_key"),
		Receiver:    str(payload, "receiver"),
		ExternalURL: str(payload, "externalURL", "external_url"),
		RawPayload:  payload,
	}

	items := list(payload, "alerts")
	if items == nil {
		// single-alert payload: the envelope is the alert
		out.Alerts = append(out.Alerts, d.parseAlert(payload))
		return out, nil
	}
	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Alerts = append(out.Alerts, d.parseAlert(raw))
	}
	return out, nil
}

func (d *Generic) parseAlert(raw map[string]any) alert.NormalizedAlert {
	labels := stringMap(raw, "labels")
	if labels == nil {
		labels = map[string]string{}
	}
	annotations := stringMap(raw, "annotations")

	name := str(raw, "name", "title", "alertname")
	if name == "" {
		name = labels["alertname"]
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      genericStatus(raw),
		Severity:    genericSeverity(raw, labels),
		Description: genericDescription(raw, annotations),
		Labels:      labels,
		Annotations: annotations,
		StartedAt:   parseTime(firstOf(raw, "startsAt", "started_at", "timestamp")),
		RawPayload:  raw,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if na.Status == alert.StatusResolved {
		if endsAt := parseTime(firstOf(raw, "endsAt", "ended_at")); !endsAt.IsZero() && !endsAt.After(d.now().Add(farFutureWindow)) {
			na.EndedAt = &endsAt
		}
	}

	na.Fingerprint = str(raw, "fingerprint")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}
	return na
}

// genericStatus reads status or state, falling back to state-word
// heuristics when the primary field is absent or unrecognized.
func genericStatus(raw map[string]any) alert.Status {
	primary := str(raw, "status", "state")
	switch strings.ToLower(primary) {
	case "firing", "resolved":
		return alert.Status(strings.ToLower(primary))
	case "ok", "normal", "closed", "recovered":
		return alert.StatusResolved
	}
	return alert.NormalizeStatus(primary)
}

// genericSeverity reads severity, priority, or level, from the alert body
// or its labels.
func genericSeverity(raw map[string]any, labels map[string]string) alert.Severity {
	s := str(raw, "severity", "priority", "level")
	if s == "" {
		s = labels["severity"]
	}
	if s == "" {
		s = labels["priority"]
	}
	if strings.HasPrefix(strings.ToUpper(s), "P") && len(s) == 2 {
		return priorityTierSeverity(s)
	}
	return alert.NormalizeSeverity(s)
}

func genericDescription(raw map[string]any, annotations map[string]string) string {
	if desc := str(raw, "description", "message", "summary"); desc != "" {
		return desc
	}
	if annotations != nil {
		if desc := annotations["description"]; desc != "" {
			return desc
		}
		return annotations["summary"]
	}
	return ""
}

// firstOf returns the first present value among keys.
func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}
