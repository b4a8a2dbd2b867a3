// Package alert defines Beacon's canonical alert representation. Every
// source driver parses its vendor payload into these types; everything
// downstream (lifecycle engine, pipeline nodes) consumes only them.
package alert

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a normalized alert.
type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// Severity is the normalized severity tier of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities so "worse of two" is well defined.
var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// Rank returns the ordinal rank of a severity (critical=3 .. info=1).
// Unknown severities rank as warning.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityWarning]
}

// Worse returns the higher-ranked of the two severities.
func Worse(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// NormalizeStatus coerces a raw status word into the canonical Status set.
// Anything unrecognized is treated as firing.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "resolved", "ok", "closed", "recovered", "normal":
		return StatusResolved
	case "firing", "triggered", "alerting", "open", "problem":
		return StatusFiring
	default:
		return StatusFiring
	}
}

// NormalizeSeverity coerces a raw severity word into the canonical Severity
// set. Anything unrecognized is treated as warning.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit", "error", "emergency", "page", "disaster", "high":
		return SeverityCritical
	case "warning", "warn", "medium", "average":
		return SeverityWarning
	case "info", "informational", "low", "ok", "none":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// NormalizedAlert is one alert in canonical form. Status and Severity are
// always members of their enumerated sets; drivers normalize at
// construction and never leave raw vendor values behind.
type NormalizedAlert struct {
	Fingerprint string            `json:"fingerprint"`
	Name        string            `json:"name"`
	Status      Status            `json:"status"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`

	// RawPayload retains the vendor's per-alert object for audit.
	RawPayload map[string]any `json:"raw_payload,omitempty"`
}

// NormalizedPayload is the canonical form of one webhook delivery: the
// ordered alerts it carried plus envelope metadata passed through untouched.
type NormalizedPayload struct {
	Source      string            `json:"source"`
	Version     string            `json:"version,omitempty"`
	GroupKey    string            `json:"group_key,omitempty"`
	Receiver    string            `json:"receiver,omitempty"`
	ExternalURL string            `json:"external_url,omitempty"`
	Alerts      []NormalizedAlert `json:"alerts"`

	// RawPayload retains the full vendor envelope for audit.
	RawPayload map[string]any `json:"raw_payload,omitempty"`
}
