package source

import (
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Grafana parses Grafana unified-alerting webhook deliveries. The envelope
// is Alertmanager-family but carries Grafana-specific fields (orgId, title,
// state, message) and per-alert valueString.
type Grafana struct {
	baseDriver
	now func() time.Time
}

// NewGrafana creates the Grafana driver.
func NewGrafana() *Grafana {
	return &Grafana{now: time.Now}
}

func (*Grafana) Name() string { return "grafana" }

// Validate requires the alerts list plus Grafana's own envelope markers so
// plain Alertmanager payloads do not land here.
func (*Grafana) Validate(payload map[string]any) bool {
	if list(payload, "alerts") == nil {
		return false
	}
	if _, ok := payload["orgId"]; ok {
		return true
	}
	return str(payload, "title") != "" && str(payload, "state") != ""
}

func (d *Grafana) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	out := &alert.NormalizedPayload{
		Source:      d.Name(),
		Version:     str(payload, "version"),
		GroupKey:    str(payload, "groupKey"),
		Receiver:    str(payload, "receiver"),
		ExternalURL: str(payload, "externalURL"),
		RawPayload:  payload,
	}

	for _, item := range list(payload, "alerts") {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Alerts = append(out.Alerts, d.parseAlert(raw, payload))
	}
	return out, nil
}

func (d *Grafana) parseAlert(raw, envelope map[string]any) alert.NormalizedAlert {
	labels := stringMap(raw, "labels")
	annotations := stringMap(raw, "annotations")

	name := labels["alertname"]
	if name == "" {
		name = str(envelope, "title")
	}

	desc := annotations["description"]
	if desc == "" {
		desc = annotations["summary"]
	}
	if desc == "" {
		desc = str(envelope, "message")
	}

	status := str(raw, "status")
	if status == "" {
		status = str(envelope, "state")
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      alert.NormalizeStatus(status),
		Severity:    alert.NormalizeSeverity(labels["severity"]),
		Description: desc,
		Labels:      labels,
		Annotations: annotations,
		StartedAt:   parseTime(raw["startsAt"]),
		RawPayload:  raw,
	}

	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}

	if vs := str(raw, "valueString"); vs != "" {
		if na.Annotations == nil {
			na.Annotations = map[string]string{}
		}
		na.Annotations["value_string"] = vs
	}

	if na.Status == alert.StatusResolved {
		if endsAt := parseTime(raw["endsAt"]); !endsAt.IsZero() && !endsAt.After(d.now().Add(farFutureWindow)) {
			na.EndedAt = &endsAt
		}
	}

	na.Fingerprint = str(raw, "fingerprint")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}
	return na
}
