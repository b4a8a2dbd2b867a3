package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Opsgenie parses Opsgenie alert action webhooks: an action word plus an
// alert object with P1..P5 priority tiers.
type Opsgenie struct {
	baseDriver
	now func() time.Time
}

// NewOpsgenie creates the Opsgenie driver.
func NewOpsgenie() *Opsgenie {
	return &Opsgenie{now: time.Now}
}

func (*Opsgenie) Name() string { return "opsgenie" }

// resolvingActions are the action words that make an alert resolved.
var resolvingActions = map[string]bool{
	"close":       true,
	"acknowledge": true,
	"ack":         true,
	"resolve":     true,
	"delete":      true,
}

func (*Opsgenie) Validate(payload map[string]any) bool {
	return str(payload, "action") != "" && subMap(payload, "alert") != nil
}

func (d *Opsgenie) Parse(payload map[string]any) (*alert.NormalizedPayload, error) {
	if !d.Validate(payload) {
		return nil, invalid(d.Name())
	}

	raw := subMap(payload, "alert")
	action := strings.ToLower(strings.TrimSpace(str(payload, "action")))

	status := alert.StatusFiring
	if resolvingActions[action] {
		status = alert.StatusResolved
	}

	name := str(raw, "message", "alias")
	labels := tagsToLabels(raw)
	labels["source"] = d.Name()
	if team := str(raw, "teamName", "team"); team != "" {
		labels["team"] = team
	}
	if entity := str(raw, "entity"); entity != "" {
		labels["entity"] = entity
	}

	na := alert.NormalizedAlert{
		Name:        name,
		Status:      status,
		Severity:    priorityTierSeverity(str(raw, "priority")),
		Description: str(raw, "description", "message"),
		Labels:      labels,
		Annotations: map[string]string{"action": action},
		StartedAt:   parseTime(raw["createdAt"]),
		RawPayload:  payload,
	}
	if na.StartedAt.IsZero() {
		na.StartedAt = d.now().UTC()
	}
	if status == alert.StatusResolved {
		ended := d.now().UTC()
		na.EndedAt = &ended
	}

	// native alert id, else alias, else generated
	na.Fingerprint = str(raw, "alertId", "id")
	if na.Fingerprint == "" {
		na.Fingerprint = str(raw, "alias")
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

// priorityTierSeverity maps P1..P5 priority tiers onto canonical severity:
// P1/P2 critical, P3 warning, P4/P5 info, everything else warning.
func priorityTierSeverity(priority string) alert.Severity {
	switch strings.ToUpper(strings.TrimSpace(priority)) {
	case "P1", "P2":
		return alert.SeverityCritical
	case "P3":
		return alert.SeverityWarning
	case "P4", "P5":
		return alert.SeverityInfo
	default:
		return alert.SeverityWarning
	}
}

// tagsToLabels flattens an Opsgenie-style tags array into labels. Tags of
// the form "key:value" split; bare tags land under tag_N keys.
func tagsToLabels(raw map[string]any) map[string]string {
	out := make(map[string]string)
	for i, item := range list(raw, "tags") {
		tag, ok := item.(string)
		if !ok {
			continue
		}
		if k, v, found := strings.Cut(tag, ":"); found {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		} else {
			out["tag_"+strconv.Itoa(i)] = tag
		}
	}
	return out
}
