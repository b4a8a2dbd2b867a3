// Package lifecycle owns the persisted alert/incident state machine. It maps
// normalized payloads onto Alert rows keyed by (fingerprint, source), groups
// related alerts into Incidents, and keeps an append-only history trail.
package lifecycle

import (
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// IncidentStatus tracks where an incident is in its lifecycle.
type IncidentStatus string

const (
	// IncidentOpen means active and unhandled
	IncidentOpen IncidentStatus = "open"

	// IncidentAcknowledged means a human has taken ownership
	IncidentAcknowledged IncidentStatus = "acknowledged"

	// IncidentResolved means all attached alerts stopped firing
	IncidentResolved IncidentStatus = "resolved"
)

// History event names.
const (
	EventCreated         = "created"
	EventSeverityChanged = "severity_changed"
	EventResolved        = "resolved"
)

// Alert is one persisted logical alert stream. The pair (Fingerprint,
// Source) identifies at most one row; creation only happens when no row
// matches.
type Alert struct {
	ID          string            `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	Source      string            `json:"source"`
	Name        string            `json:"name"`
	Status      alert.Status      `json:"status"`
	Severity    alert.Severity    `json:"severity"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	RawPayload  map[string]any    `json:"raw_payload,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`
	IncidentID  string            `json:"incident_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Incident groups related alerts under one lifecycle. It resolves only when
// zero attached alerts are firing.
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Severity    alert.Severity `json:"severity"`
	Description string         `json:"description,omitempty"`
	Status      IncidentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// HistoryEntry is one append-only audit record. Entries are written on
// creation, severity change, and resolution, and never mutated.
type HistoryEntry struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	Event     string    `json:"event"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is a configured outbound notification endpoint. The notify
// pipeline node resolves active channels by driver type.
type Channel struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Active    bool           `json:"active"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
