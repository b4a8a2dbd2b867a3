package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Options configure engine behavior.
type Options struct {
	// AutoCreateIncidents enables incident attachment for newly created
	// critical/warning alerts.
	AutoCreateIncidents bool

	// GroupLabels are the label keys whose values form the incident
	// grouping key. Alerts sharing the key land on the same open incident.
	GroupLabels []string
}

// DefaultGroupLabels group by the originating checker and host.
var DefaultGroupLabels = []string{"checker", "host"}

// Engine drives the (fingerprint, source) alert state machine and incident
// grouping against a Store.
type Engine struct {
	store   Store
	opts    Options
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewEngine creates a lifecycle engine. metrics may be nil.
func NewEngine(store Store, opts Options, logger log.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if len(opts.GroupLabels) == 0 {
		opts.GroupLabels = DefaultGroupLabels
	}
	return &Engine{
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Summary reports what one payload's processing did. A payload with Errors
// is a failed batch; successfully processed alerts within it still applied.
type Summary struct {
	Source    string   `json:"source"`
	Total     int      `json:"total"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Resolved  int      `json:"resolved"`
	Skipped   int      `json:"skipped"`
	Incidents int      `json:"incidents_created"`
	AlertIDs  []string `json:"alert_ids,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Failed reports whether the batch had any per-alert failure.
func (s *Summary) Failed() bool { return len(s.Errors) > 0 }

// Process applies one normalized payload to the store. A failure on one
// alert is recorded and does not abort the remaining alerts; after the
// batch an auto-resolution sweep closes incidents with no firing alerts.
func (e *Engine) Process(ctx context.Context, payload *alert.NormalizedPayload) (*Summary, error) {
	if payload == nil {
		return nil, fmt.Errorf("lifecycle: nil payload")
	}

	L := e.logger.With("source", payload.Source, "alerts", len(payload.Alerts))
	summary := &Summary{Source: payload.Source, Total: len(payload.Alerts)}

	for i := range payload.Alerts {
		if err := e.processOne(ctx, payload.Source, &payload.Alerts[i], summary); err != nil {
			L.Error(ctx, err, "alert processing failed",
				"fingerprint", payload.Alerts[i].Fingerprint,
			)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", payload.Alerts[i].Fingerprint, err))
			if e.metrics != nil {
				e.metrics.ProcessErrors.Inc()
			}
		}
	}

	if err := e.sweepIncidents(ctx); err != nil {
		L.Error(ctx, err, "incident auto-resolution sweep failed")
		summary.Errors = append(summary.Errors, fmt.Sprintf("sweep: %v", err))
	}

	if e.metrics != nil {
		e.metrics.Observe(summary)
	}

	L.Info(ctx, "payload processed",
		"created", summary.Created,
		"updated", summary.Updated,
		"resolved", summary.Resolved,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
	)
	return summary, nil
}

func (e *Engine) processOne(ctx context.Context, src string, na *alert.NormalizedAlert, summary *Summary) error {
	existing, found, err := e.store.GetAlert(ctx, na.Fingerprint, src)
	if err != nil {
		return fmt.Errorf("lookup alert: %w", err)
	}

	switch {
	case !found && na.Status == alert.StatusFiring:
		return e.createAlert(ctx, src, na, summary)

	case !found:
		// nothing to resolve
		summary.Skipped++
		return nil

	case existing.Status == alert.StatusFiring && na.Status == alert.StatusFiring:
		return e.refreshAlert(ctx, existing, na, summary)

	case existing.Status == alert.StatusFiring && na.Status == alert.StatusResolved:
		return e.resolveAlert(ctx, existing, na, summary)

	default:
		// already resolved: refresh mutable fields, never flip back to
		// firing (a resolved stream stays resolved until a new row exists)
		return e.touchResolved(ctx, existing, na, summary)
	}
}

func (e *Engine) createAlert(ctx context.Context, src string, na *alert.NormalizedAlert, summary *Summary) error {
	now := e.now().UTC()
	row := &Alert{
		ID:          ulid.Make().String(),
		Fingerprint: na.Fingerprint,
		Source:      src,
		Name:        na.Name,
		Status:      alert.StatusFiring,
		Severity:    na.Severity,
		Description: na.Description,
		Labels:      na.Labels,
		Annotations: na.Annotations,
		RawPayload:  na.RawPayload,
		StartedAt:   na.StartedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.CreateAlert(ctx, row); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	if err := e.store.AppendHistory(ctx, &HistoryEntry{
		ID:        ulid.Make().String(),
		AlertID:   row.ID,
		Event:     EventCreated,
		NewStatus: string(alert.StatusFiring),
		Details:   fmt.Sprintf("alert created from %s with severity %s", src, row.Severity),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	summary.Created++
	summary.AlertIDs = append(summary.AlertIDs, row.ID)

	if e.opts.AutoCreateIncidents && row.Severity != alert.SeverityInfo {
		if err := e.attachIncident(ctx, row, summary); err != nil {
			return fmt.Errorf("attach incident: %w", err)
		}
	}
	return nil
}

func (e *Engine) refreshAlert(ctx context.Context, existing *Alert, na *alert.NormalizedAlert, summary *Summary) error {
	oldSeverity := existing.Severity
	e.applyMutable(existing, na)

	if err := e.store.UpdateAlert(ctx, existing); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}

	if oldSeverity != existing.Severity {
		if err := e.store.AppendHistory(ctx, &HistoryEntry{
			ID:        ulid.Make().String(),
			AlertID:   existing.ID,
			Event:     EventSeverityChanged,
			OldStatus: string(alert.StatusFiring),
			NewStatus: string(alert.StatusFiring),
			Details:   fmt.Sprintf("severity %s -> %s", oldSeverity, existing.Severity),
			CreatedAt: e.now().UTC(),
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	summary.Updated++
	summary.AlertIDs = append(summary.AlertIDs, existing.ID)
	return nil
}

func (e *Engine) resolveAlert(ctx context.Context, existing *Alert, na *alert.NormalizedAlert, summary *Summary) error {
	e.applyMutable(existing, na)
	existing.Status = alert.StatusResolved

	ended := e.now().UTC()
	if na.EndedAt != nil {
		ended = *na.EndedAt
	}
	existing.EndedAt = &ended

	if err := e.store.UpdateAlert(ctx, existing); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if err := e.store.AppendHistory(ctx, &HistoryEntry{
		ID:        ulid.Make().String(),
		AlertID:   existing.ID,
		Event:     EventResolved,
		OldStatus: string(alert.StatusFiring),
		NewStatus: string(alert.StatusResolved),
		CreatedAt: e.now().UTC(),
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	summary.Resolved++
	summary.AlertIDs = append(summary.AlertIDs, existing.ID)
	return nil
}

func (e *Engine) touchResolved(ctx context.Context, existing *Alert, na *alert.NormalizedAlert, summary *Summary) error {
	e.applyMutable(existing, na)
	if err := e.store.UpdateAlert(ctx, existing); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	summary.Updated++
	summary.AlertIDs = append(summary.AlertIDs, existing.ID)
	return nil
}

// applyMutable copies the fields a fresh delivery may change onto the row.
func (e *Engine) applyMutable(row *Alert, na *alert.NormalizedAlert) {
	row.Severity = na.Severity
	if na.Description != "" {
		row.Description = na.Description
	}
	if na.Annotations != nil {
		row.Annotations = na.Annotations
	}
	if na.RawPayload != nil {
		row.RawPayload = na.RawPayload
	}
	row.UpdatedAt = e.now().UTC()
}

// groupKey derives the incident grouping key for an alert from the
// configured label keys, falling back to the alert name.
func (e *Engine) groupKey(a *Alert) string {
	parts := make([]string, 0, len(e.opts.GroupLabels))
	for _, k := range e.opts.GroupLabels {
		if v := a.Labels[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if len(parts) == 0 {
		return "name=" + a.Name
	}
	return strings.Join(parts, ",")
}

// attachIncident finds an open or acknowledged incident already holding an
// alert with the same grouping key and attaches the new alert to it,
// raising the incident severity to the worse of the two. Without a match it
// creates a fresh incident seeded from the alert.
func (e *Engine) attachIncident(ctx context.Context, row *Alert, summary *Summary) error {
	key := e.groupKey(row)

	open, err := e.store.OpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("list open incidents: %w", err)
	}

	for _, in := range open {
		attached, err := e.store.AlertsByIncident(ctx, in.ID)
		if err != nil {
			return fmt.Errorf("list incident alerts: %w", err)
		}
		for _, a := range attached {
			if e.groupKey(a) != key {
				continue
			}
			row.IncidentID = in.ID
			if err := e.store.UpdateAlert(ctx, row); err != nil {
				return fmt.Errorf("link alert to incident: %w", err)
			}
			if worse := alert.Worse(in.Severity, row.Severity); worse != in.Severity {
				in.Severity = worse
				in.UpdatedAt = e.now().UTC()
				if err := e.store.UpdateIncident(ctx, in); err != nil {
					return fmt.Errorf("escalate incident severity: %w", err)
				}
			}
			return nil
		}
	}

	now := e.now().UTC()
	in := &Incident{
		ID:          ulid.Make().String(),
		Title:       row.Name,
		Severity:    row.Severity,
		Description: row.Description,
		Status:      IncidentOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateIncident(ctx, in); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}

	row.IncidentID = in.ID
	if err := e.store.UpdateAlert(ctx, row); err != nil {
		return fmt.Errorf("link alert to incident: %w", err)
	}

	summary.Incidents++
	return nil
}

// sweepIncidents resolves every open/acknowledged incident whose attached
// alerts have all stopped firing.
func (e *Engine) sweepIncidents(ctx context.Context) error {
	open, err := e.store.OpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("list open incidents: %w", err)
	}

	for _, in := range open {
		attached, err := e.store.AlertsByIncident(ctx, in.ID)
		if err != nil {
			return fmt.Errorf("list incident alerts: %w", err)
		}

		firing := 0
		for _, a := range attached {
			if a.Status == alert.StatusFiring {
				firing++
			}
		}
		if firing > 0 {
			continue
		}

		now := e.now().UTC()
		in.Status = IncidentResolved
		in.ResolvedAt = &now
		in.UpdatedAt = now
		if err := e.store.UpdateIncident(ctx, in); err != nil {
			return fmt.Errorf("resolve incident %s: %w", in.ID, err)
		}
		if e.metrics != nil {
			e.metrics.IncidentsResolved.Inc()
		}
		e.logger.Info(ctx, "incident auto-resolved", "incident_id", in.ID, "title", in.Title)
	}
	return nil
}
