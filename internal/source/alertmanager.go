package source

import (
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// farFutureWindow is how far ahead an endsAt must be before we treat it as
// "no real end time". Alertmanager stamps a synthetic endsAt on alerts that
// are still firing.
const farFutureWindow = 365 * 24 * time.Hour

// Alertmanager parses Prometheus Alertmanager webhook deliveries.
type Alertmanager struct {
	baseDriver
	now func() time.Time
}

// NewAlertmanager creates the Alertmanager driver.
func NewAlertmanager() *Alertmanager {
	return &Alertmanager{now: time.Now}
}

func (*Alertmanager) Name() string { return "alertmanager" }

// Validate accepts payloads carrying an alerts list plus at least two of the
// Alertmanager envelope fields.
func (*Alertmanager) Validate(payload map[string]any) bool {
	if list(payload, "alerts") == nil {
		return false
	}
	envelope := 0
	for _, k := range []string{"version", "groupKey", "receiver", "externalURL"} {
		if str(payload, k) != "" {
			envelope++
		}
	}
	return envelope >= 2
}

// Parse maps the webhook onto canonical form. Per-alert status passes
// through; a synthetic far-future endsAt is nulled out and the alert stays
// firing.
func (d *Alertmanager) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
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
		out.Alerts = append(out.Alerts, d.parseAlert(raw))
	}
	return out, nil
}

func (d *Alertmanager) parseAlert(raw map[string]any) alert.NormalizedAlert {
	labels := stringMap(raw, "labels")
	annotations := stringMap(raw, "annotations")
	name := labels["alertname"]

	desc := annotations["description"]
	if desc == "" {
		desc = annotations["summary"]
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      alert.NormalizeStatus(str(raw, "status")),
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

	if endsAt := parseTime(raw["endsAt"]); !endsAt.IsZero() {
		if endsAt.After(d.now().Add(farFutureWindow)) {
			// synthetic end time, alert is still firing
			na.Status = alert.StatusFiring
		} else if na.Status == alert.StatusResolved {
			// a firing alert can carry a stale endsAt; only a resolved
			// alert gets an end timestamp
			na.EndedAt = &endsAt
		}
	}

	na.Fingerprint = str(raw, "fingerprint")
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}
	return na
}
