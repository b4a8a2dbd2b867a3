package source

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal test payload: %v", err)
	}
	return m
}

// Alertmanager

const amPayload = `{
	"version": "4",
	"groupKey": "{}:{alertname=\"HighCPU\"}",
	"receiver": "beacon",
	"status": "firing",
	"alerts": [{
		"status": "firing",
		"labels": {"alertname": "HighCPU", "severity": "critical", "instance": "web-1"},
		"annotations": {"summary": "CPU above 90%"},
		"startsAt": "2026-08-01T10:00:00Z",
		"endsAt": "0001-01-01T00:00:00Z"
	}]
}`

func TestAlertmanager_Parse(t *testing.T) {
	t.Parallel()

	d := NewAlertmanager()
	payload := decode(t, amPayload)

	if !d.Validate(payload) {
		t.Fatal("Validate = false, want true")
	}

	np, err := d.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if np.Source != "alertmanager" {
		t.Errorf("Source = %q, want alertmanager", np.Source)
	}
	if np.Receiver != "beacon" {
		t.Errorf("Receiver = %q, want beacon", np.Receiver)
	}
	if len(np.Alerts) != 1 {
		t.Fatalf("len(Alerts) = %d, want 1", len(np.Alerts))
	}

	na := np.Alerts[0]
	if na.Name != "HighCPU" {
		t.Errorf("Name = %q, want HighCPU", na.Name)
	}
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", na.Status)
	}
	if na.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q, want critical", na.Severity)
	}
	if len(na.Fingerprint) != fingerprintLen {
		t.Errorf("len(Fingerprint) = %d, want %d", len(na.Fingerprint), fingerprintLen)
	}

	// same labels and name reproduce the same fingerprint
	want := GenerateFingerprint(na.Labels, "HighCPU")
	if na.Fingerprint != want {
		t.Errorf("Fingerprint = %q, want %q", na.Fingerprint, want)
	}
}

func TestAlertmanager_NativeFingerprintWins(t *testing.T) {
	t.Parallel()

	payload := decode(t, amPayload)
	alerts := payload["alerts"].([]any)
	alerts[0].(map[string]any)["fingerprint"] = "deadbeefcafe0123"

	np, err := NewAlertmanager().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := np.Alerts[0].Fingerprint; got != "deadbeefcafe0123" {
		t.Errorf("Fingerprint = %q, want native deadbeefcafe0123", got)
	}
}

func TestAlertmanager_FarFutureEndsAtStaysFiring(t *testing.T) {
	t.Parallel()

	payload := decode(t, amPayload)
	alerts := payload["alerts"].([]any)
	far := time.Now().Add(2 * 365 * 24 * time.Hour).Format(time.RFC3339)
	alerts[0].(map[string]any)["endsAt"] = far
	alerts[0].(map[string]any)["status"] = "resolved"

	np, err := NewAlertmanager().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing (far-future endsAt)", na.Status)
	}
	if na.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", na.EndedAt)
	}
}

func TestAlertmanager_FiringIgnoresStaleEndsAt(t *testing.T) {
	t.Parallel()

	// a re-fired alert can carry the endsAt of its previous resolution;
	// while the status says firing no end timestamp applies
	payload := decode(t, amPayload)
	alerts := payload["alerts"].([]any)
	alerts[0].(map[string]any)["endsAt"] = "2026-08-01T11:00:00Z"

	np, err := NewAlertmanager().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", na.Status)
	}
	if na.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil while firing", na.EndedAt)
	}
}

func TestAlertmanager_RealEndsAtResolves(t *testing.T) {
	t.Parallel()

	payload := decode(t, amPayload)
	alerts := payload["alerts"].([]any)
	alerts[0].(map[string]any)["status"] = "resolved"
	alerts[0].(map[string]any)["endsAt"] = "2026-08-01T11:00:00Z"

	np, err := NewAlertmanager().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want resolved", na.Status)
	}
	if na.EndedAt == nil {
		t.Fatal("EndedAt = nil, want set")
	}
}

// Opsgenie

func TestOpsgenie_CloseActionResolves(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"action": "Close",
		"alert": {"alertId": "og-123", "message": "Disk full", "priority": "P1"}
	}`)

	np, err := NewOpsgenie().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want resolved regardless of priority", na.Status)
	}
	if na.Fingerprint != "og-123" {
		t.Errorf("Fingerprint = %q, want native og-123", na.Fingerprint)
	}
}

func TestOpsgenie_PriorityTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority string
		want     alert.Severity
	}{
		{"P1", alert.SeverityCritical},
		{"P2", alert.SeverityCritical},
		{"P3", alert.SeverityWarning},
		{"P4", alert.SeverityInfo},
		{"P5", alert.SeverityInfo},
		{"P99", alert.SeverityWarning},
		{"", alert.SeverityWarning},
	}
	for _, tt := range tests {
		if got := priorityTierSeverity(tt.priority); got != tt.want {
			t.Errorf("priorityTierSeverity(%q) = %s, want %s", tt.priority, got, tt.want)
		}
	}
}

func TestOpsgenie_AliasFallbackFingerprint(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"action": "Create",
		"alert": {"alias": "disk-web-1", "message": "Disk full", "priority": "P3"}
	}`)

	np, err := NewOpsgenie().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := np.Alerts[0].Fingerprint; got != "disk-web-1" {
		t.Errorf("Fingerprint = %q, want alias disk-web-1", got)
	}
	if got := np.Alerts[0].Status; got != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", got)
	}
}

// Datadog

func TestDatadog_Parse(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"alert_id": "778899",
		"alert_title": "Latency p99 high",
		"alert_type": "error",
		"alert_transition": "Triggered",
		"tags": "env:prod,service:api",
		"date": 1754040000
	}`)

	np, err := NewDatadog().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", na.Status)
	}
	if na.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q, want critical (alert_type error)", na.Severity)
	}
	if na.Fingerprint != "778899" {
		t.Errorf("Fingerprint = %q, want native 778899", na.Fingerprint)
	}
	if na.Labels["env"] != "prod" || na.Labels["service"] != "api" {
		t.Errorf("tag labels = %v, want env/service parsed", na.Labels)
	}
}

func TestDatadog_RecoveryResolves(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    alert.Status
	}{
		{"transition recovered", `{"alert_id":"1","alert_transition":"Recovered","alert_type":"error"}`, alert.StatusResolved},
		{"status ok", `{"alert_id":"2","alert_status":"OK","alert_type":"warning","alert_transition":"No Data"}`, alert.StatusResolved},
		{"still triggered", `{"alert_id":"3","alert_transition":"Re-Triggered","alert_type":"warning"}`, alert.StatusFiring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			np, err := NewDatadog().Parse(decode(t, tt.payload))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := np.Alerts[0].Status; got != tt.want {
				t.Errorf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatadog_PrioritySeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    alert.Severity
	}{
		{`{"alert_id":"1","alert_type":"warning","priority":"p1"}`, alert.SeverityCritical},
		{`{"alert_id":"2","alert_type":"warning","priority":"p3"}`, alert.SeverityInfo},
		{`{"alert_id":"3","alert_type":"warning","priority":"low"}`, alert.SeverityInfo},
		{`{"alert_id":"4","alert_type":"warning"}`, alert.SeverityWarning},
	}
	for _, tt := range tests {
		np, err := NewDatadog().Parse(decode(t, tt.payload))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got := np.Alerts[0].Severity; got != tt.want {
			t.Errorf("payload %s: Severity = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

// New Relic

func TestNewRelic_Parse(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"incident_id": "nr-42",
		"condition_name": "High error rate",
		"policy_name": "API",
		"current_state": "open",
		"severity": "CRITICAL",
		"details": "error rate above threshold"
	}`)

	np, err := NewNewRelic().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", na.Status)
	}
	if na.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q, want critical", na.Severity)
	}
	if na.Fingerprint != "nr-42" {
		t.Errorf("Fingerprint = %q, want nr-42", na.Fingerprint)
	}
}

func TestNewRelic_StateAndSeverityTable(t *testing.T) {
	t.Parallel()

	for _, state := range []string{"closed", "acknowledged"} {
		payload := decode(t, `{"incident_id":"x","condition_name":"c","current_state":"`+state+`"}`)
		np, err := NewNewRelic().Parse(payload)
		if err != nil {
			t.Fatalf("Parse(%s): %v", state, err)
		}
		if got := np.Alerts[0].Status; got != alert.StatusResolved {
			t.Errorf("state %q: Status = %q, want resolved", state, got)
		}
	}

	sev := []struct {
		in   string
		want alert.Severity
	}{
		{"high", alert.SeverityCritical},
		{"medium", alert.SeverityWarning},
		{"low", alert.SeverityInfo},
		{"info", alert.SeverityInfo},
		{"weird", alert.SeverityWarning},
	}
	for _, tt := range sev {
		if got := mappedSeverity(tt.in); got != tt.want {
			t.Errorf("mappedSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// Zabbix

func TestZabbix_NumericEventValue(t *testing.T) {
	t.Parallel()

	firing := decode(t, `{"event_id":"1001","trigger_id":"55","trigger_name":"Load high","event_value":1,"severity":4,"host":"db-1"}`)
	np, err := NewZabbix().Parse(firing)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing (event_value 1)", na.Status)
	}
	if na.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q, want critical (numeric 4)", na.Severity)
	}
	if na.Fingerprint != "1001" {
		t.Errorf("Fingerprint = %q, want event id 1001", na.Fingerprint)
	}

	resolved := decode(t, `{"event_id":"1002","trigger_id":"55","trigger_name":"Load high","event_value":0,"severity":"High"}`)
	np, err = NewZabbix().Parse(resolved)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := np.Alerts[0].Status; got != alert.StatusResolved {
		t.Errorf("Status = %q, want resolved (event_value 0)", got)
	}
}

func TestZabbix_SeverityLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    alert.Severity
	}{
		{`{"event_id":"1","severity":5}`, alert.SeverityCritical},
		{`{"event_id":"2","severity":3}`, alert.SeverityWarning},
		{`{"event_id":"3","severity":1}`, alert.SeverityInfo},
		{`{"event_id":"4","severity":"Disaster"}`, alert.SeverityCritical},
		{`{"event_id":"5","severity":"Average"}`, alert.SeverityWarning},
		{`{"event_id":"6","severity":"Information"}`, alert.SeverityInfo},
	}
	for _, tt := range tests {
		np, err := NewZabbix().Parse(decode(t, tt.payload))
		if err != nil {
			t.Fatalf("Parse(%s): %v", tt.payload, err)
		}
		if got := np.Alerts[0].Severity; got != tt.want {
			t.Errorf("payload %s: Severity = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestZabbix_TriggerIDFallbackFingerprint(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{"trigger_id":"77","trigger_name":"Ping loss","event_value":1}`)
	np, err := NewZabbix().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := np.Alerts[0].Fingerprint; got != "77" {
		t.Errorf("Fingerprint = %q, want trigger id 77", got)
	}
}

// Generic

func TestGeneric_SingleAlertShape(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{"title":"Custom thing broke","state":"normal","level":"low"}`)
	np, err := NewGeneric().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want resolved (state normal)", na.Status)
	}
	if na.Severity != alert.SeverityInfo {
		t.Errorf("Severity = %q, want info (level low)", na.Severity)
	}
	if na.Name != "Custom thing broke" {
		t.Errorf("Name = %q", na.Name)
	}
}

func TestGeneric_AlertsListShape(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{"alerts":[{"name":"a","priority":"P2"},{"name":"b","status":"resolved"}]}`)
	np, err := NewGeneric().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(np.Alerts) != 2 {
		t.Fatalf("len(Alerts) = %d, want 2", len(np.Alerts))
	}
	if got := np.Alerts[0].Severity; got != alert.SeverityCritical {
		t.Errorf("Alerts[0].Severity = %q, want critical (P2)", got)
	}
	if got := np.Alerts[1].Status; got != alert.StatusResolved {
		t.Errorf("Alerts[1].Status = %q, want resolved", got)
	}
}

func TestGeneric_EndedAtOnlyWhenResolved(t *testing.T) {
	t.Parallel()

	firing := decode(t, `{"name":"thing","status":"firing","ended_at":"2026-08-01T11:00:00Z"}`)
	np, err := NewGeneric().Parse(firing)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := np.Alerts[0].EndedAt; got != nil {
		t.Errorf("EndedAt = %v, want nil while firing", got)
	}

	resolved := decode(t, `{"name":"thing","status":"resolved","ended_at":"2026-08-01T11:00:00Z"}`)
	np, err = NewGeneric().Parse(resolved)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if np.Alerts[0].EndedAt == nil {
		t.Error("EndedAt = nil, want set when resolved")
	}
}

// Grafana

func TestGrafana_Parse(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"orgId": 1,
		"title": "[FIRING:1] DiskFull",
		"state": "alerting",
		"message": "disk is full",
		"alerts": [{
			"status": "firing",
			"labels": {"alertname": "DiskFull", "severity": "warning"},
			"annotations": {},
			"valueString": "[ var='A' value=97 ]"
		}]
	}`)

	d := NewGrafana()
	if !d.Validate(payload) {
		t.Fatal("Validate = false, want true")
	}
	np, err := d.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Name != "DiskFull" {
		t.Errorf("Name = %q, want DiskFull", na.Name)
	}
	if na.Severity != alert.SeverityWarning {
		t.Errorf("Severity = %q, want warning", na.Severity)
	}
	if na.Annotations["value_string"] == "" {
		t.Error("expected valueString captured in annotations")
	}
	if na.Description != "disk is full" {
		t.Errorf("Description = %q, want envelope message", na.Description)
	}
}

func TestGrafana_DetectedWithFullEnvelope(t *testing.T) {
	t.Parallel()

	// real unified-alerting deliveries carry the whole Alertmanager
	// envelope next to the Grafana markers; detection must still land on
	// the grafana driver
	payload := decode(t, `{
		"version": "1",
		"groupKey": "{}:{alertname=\"DiskFull\"}",
		"receiver": "beacon",
		"externalURL": "https://grafana.example.com",
		"orgId": 1,
		"title": "[FIRING:1] DiskFull",
		"state": "alerting",
		"alerts": [{
			"status": "firing",
			"labels": {"alertname": "DiskFull", "severity": "warning"},
			"valueString": "[ var='A' value=97 ]"
		}]
	}`)

	d, err := Default().Detect(payload)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Name() != "grafana" {
		t.Errorf("detected %q, want grafana", d.Name())
	}

	np, err := d.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if np.Receiver != "beacon" {
		t.Errorf("Receiver = %q, want beacon", np.Receiver)
	}
	if got := np.Alerts[0].Annotations["value_string"]; got == "" {
		t.Error("expected valueString captured in annotations")
	}
}

func TestDefault_DetectPerSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"alertmanager", amPayload, "alertmanager"},
		{"grafana", `{"version":"1","receiver":"beacon","orgId":1,"title":"[FIRING:1] X","state":"alerting","alerts":[{"labels":{"alertname":"X"}}]}`, "grafana"},
		{"opsgenie", `{"action":"Create","alert":{"alertId":"1","message":"m","priority":"P1"}}`, "opsgenie"},
		{"pagerduty", `{"event":{"event_type":"incident.triggered","data":{"id":"PD1","title":"t"}}}`, "pagerduty"},
		{"datadog", `{"alert_id":"1","alert_type":"error","alert_transition":"Triggered"}`, "datadog"},
		{"newrelic", `{"incident_id":"1","condition_name":"c","current_state":"open"}`, "newrelic"},
		{"zabbix", `{"event_id":"1","trigger_name":"t","event_value":1}`, "zabbix"},
		{"generic", `{"name":"whatever"}`, "generic"},
	}

	r := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := r.Detect(decode(t, tt.payload))
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if d.Name() != tt.want {
				t.Errorf("detected %q, want %q", d.Name(), tt.want)
			}
		})
	}
}

// PagerDuty

func TestPagerDuty_Parse(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"event": {
			"event_type": "incident.triggered",
			"occurred_at": "2026-08-01T09:00:00Z",
			"data": {
				"id": "PD-99",
				"title": "Queue backlog",
				"status": "triggered",
				"urgency": "high",
				"priority": {"summary": "P2"}
			}
		}
	}`)

	np, err := NewPagerDuty().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusFiring {
		t.Errorf("Status = %q, want firing", na.Status)
	}
	if na.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q, want critical (P2)", na.Severity)
	}
	if na.Fingerprint != "PD-99" {
		t.Errorf("Fingerprint = %q, want PD-99", na.Fingerprint)
	}
}

func TestPagerDuty_ResolvedEventType(t *testing.T) {
	t.Parallel()

	payload := decode(t, `{
		"event": {
			"event_type": "incident.resolved",
			"data": {"id": "PD-99", "title": "Queue backlog", "urgency": "low"}
		}
	}`)

	np, err := NewPagerDuty().Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	na := np.Alerts[0]
	if na.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want resolved", na.Status)
	}
	if na.Severity != alert.SeverityInfo {
		t.Errorf("Severity = %q, want info (urgency low, no priority)", na.Severity)
	}
	if na.EndedAt == nil {
		t.Error("EndedAt = nil, want set")
	}
}
