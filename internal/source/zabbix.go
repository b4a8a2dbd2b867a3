package source

import (
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Zabbix parses Zabbix trigger action payloads: numeric event values for
// firing/resolved and a 0..5 numeric or textual severity scale.
type Zabbix struct {
	baseDriver
	now func() time.Time
}

// NewZabbix creates the Zabbix driver.
func NewZabbix() *Zabbix {
	return &Zabbix{now: time.Now}
}

func (*Zabbix) Name() string { return "zabbix" }

func (*Zabbix) Validate(payload map[string]any) bool {
	if str(payload, "event_id") == "" && str(payload, "trigger_id") == "" {
		return false
	}
	if _, ok := payload["event_value"]; ok {
		return true
	}
	return str(payload, "trigger_name") != "" || str(payload, "severity") != ""
}

func (d *Zabbix) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	name := str(payload, "trigger_name", "name", "event_name")

	labels := map[string]string{"source": d.Name()}
	if host := str(payload, "host", "host_name"); host != "" {
		labels["host"] = host
	}
	if trigger := str(payload, "trigger_id"); trigger != "" {
		labels["trigger_id"] = trigger
	}
	for k, v := range tagLabels(str(payload, "tags")) {
		labels[k] = v
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      d.status(payload),
		Severity:    zabbixSeverity(payload),
		Description: str(payload, "trigger_description", "message", "trigger_name"),
		Labels:      labels,
		StartedAt:   parseTime(payload["event_time"]),
		RawPayload:  payload,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if na.Status == alert.StatusResolved {
		ended := d.now().UTC()
		na.EndedAt = &ended
	}

	// native event id, else trigger id, else generated
	na.Fingerprint = str(payload, "event_id")
	if na.Fingerprint == "" {
		na.Fingerprint = str(payload, "trigger_id")
	}
	if na.Fingerprint == "" {
		na.Fingerprint = d.Fingerprint(labels, name)
	}

	return &alert.NormalizedPayload{
		Source:     d.Name(),
		Alerts:     []alert.NormalizedAlert{na},
		RawPayload: payload,
	}, nil
}

// status: an explicit problem status or event value 1 fires; event value 0
// or an explicit ok/resolved status resolves. Absent both, firing.
func (*Zabbix) status(payload map[string]any) alert.Status {
	switch strings.ToLower(str(payload, "status", "trigger_status")) {
	case "problem":
		return alert.StatusFiring
	case "ok", "resolved":
		return alert.StatusResolved
	}
	if v, ok := num(payload, "event_value"); ok {
		if v == 1 {
			return alert.StatusFiring
		}
		if v == 0 {
			return alert.StatusResolved
		}
	}
	return alert.StatusFiring
}

// zabbixSeverity folds the numeric 0..5 scale and the textual tiers into
// one lookup.
func zabbixSeverity(payload map[string]any) alert.Severity {
	if v, ok := num(payload, "severity", "trigger_severity", "event_nseverity"); ok {
		switch int(v) {
		case 5, 4:
			return alert.SeverityCritical
		case 3, 2:
			return alert.SeverityWarning
		default: // 0 not classified, 1 information
			return alert.SeverityInfo
		}
	}
	switch strings.ToLower(str(payload, "severity", "trigger_severity")) {
	case "disaster", "high":
		return alert.SeverityCritical
	case "average", "warning":
		return alert.SeverityWarning
	case "information", "not classified":
		return alert.SeverityInfo
	default:
		return alert.SeverityWarning
	}
}
