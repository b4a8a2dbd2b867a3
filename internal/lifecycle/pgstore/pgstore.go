// Package pgstore provides a PostgreSQL implementation of lifecycle.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/lifecycle"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/lifecycle/pgstore")

//go:embed schema.sql
var schema string

// Store persists lifecycle records in PostgreSQL. The (fingerprint, source)
// uniqueness the engine assumes is enforced by a table constraint.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over an existing pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const alertColumns = `id, fingerprint, source, name, status, severity, description,
	labels, annotations, raw_payload, started_at, ended_at, incident_id, created_at, updated_at`

// CreateAlert inserts a new alert row.
func (s *Store) CreateAlert(ctx context.Context, a *lifecycle.Alert) error {
	ctx, span := startSpan(ctx, "pgstore.CreateAlert", "INSERT")
	defer span.End()

	labels, annotations, raw, err := marshalAlertJSON(a)
	if err != nil {
		return fail(span, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.Fingerprint, a.Source, a.Name, string(a.Status), string(a.Severity), a.Description,
		labels, annotations, raw, a.StartedAt, a.EndedAt, nullable(a.IncidentID), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

// GetAlert retrieves the alert row for (fingerprint, source).
func (s *Store) GetAlert(ctx context.Context, fingerprint, source string) (*lifecycle.Alert, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetAlert", "SELECT")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE fingerprint = $1 AND source = $2`,
		fingerprint, source,
	)
	a, err := scanAlert(row)
	if err != nil {
		return nil, false, fail(span, err)
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// UpdateAlert rewrites the mutable columns of an alert row.
func (s *Store) UpdateAlert(ctx context.Context, a *lifecycle.Alert) error {
	ctx, span := startSpan(ctx, "pgstore.UpdateAlert", "UPDATE")
	defer span.End()

	labels, annotations, raw, err := marshalAlertJSON(a)
	if err != nil {
		return fail(span, err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE alerts SET
			status = $2, severity = $3, description = $4, labels = $5,
			annotations = $6, raw_payload = $7, ended_at = $8,
			incident_id = $9, updated_at = $10
		 WHERE id = $1`,
		a.ID, string(a.Status), string(a.Severity), a.Description, labels,
		annotations, raw, a.EndedAt, nullable(a.IncidentID), a.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("update alert: %w", err))
	}
	return nil
}

// LatestAlertSince returns the newest alert created at or after since.
func (s *Store) LatestAlertSince(ctx context.Context, since time.Time) (*lifecycle.Alert, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.LatestAlertSince", "SELECT")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE created_at >= $1 ORDER BY created_at DESC LIMIT 1`,
		since,
	)
	a, err := scanAlert(row)
	if err != nil {
		return nil, false, fail(span, err)
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// AlertsByIncident returns all alerts attached to an incident, oldest first.
func (s *Store) AlertsByIncident(ctx context.Context, incidentID string) ([]*lifecycle.Alert, error) {
	ctx, span := startSpan(ctx, "pgstore.AlertsByIncident", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE incident_id = $1 ORDER BY created_at`,
		incidentID,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query incident alerts: %w", err))
	}
	defer rows.Close()

	var out []*lifecycle.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate incident alerts: %w", err))
	}
	return out, nil
}

// CreateIncident inserts a new incident.
func (s *Store) CreateIncident(ctx context.Context, in *lifecycle.Incident) error {
	ctx, span := startSpan(ctx, "pgstore.CreateIncident", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO incidents (id, title, severity, description, status, created_at, updated_at, resolved_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		in.ID, in.Title, string(in.Severity), in.Description, string(in.Status),
		in.CreatedAt, in.UpdatedAt, in.ResolvedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert incident: %w", err))
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*lifecycle.Incident, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetIncident", "SELECT")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`SELECT id, title, severity, description, status, created_at, updated_at, resolved_at
		 FROM incidents WHERE id = $1`, id)
	in, err := scanIncident(row)
	if err != nil {
		return nil, false, fail(span, err)
	}
	if in == nil {
		return nil, false, nil
	}
	return in, true, nil
}

// UpdateIncident rewrites the mutable columns of an incident.
func (s *Store) UpdateIncident(ctx context.Context, in *lifecycle.Incident) error {
	ctx, span := startSpan(ctx, "pgstore.UpdateIncident", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE incidents SET title = $2, severity = $3, description = $4,
			status = $5, updated_at = $6, resolved_at = $7
		 WHERE id = $1`,
		in.ID, in.Title, string(in.Severity), in.Description, string(in.Status),
		in.UpdatedAt, in.ResolvedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("update incident: %w", err))
	}
	return nil
}

// OpenIncidents returns incidents in open or acknowledged state, oldest
// first.
func (s *Store) OpenIncidents(ctx context.Context) ([]*lifecycle.Incident, error) {
	ctx, span := startSpan(ctx, "pgstore.OpenIncidents", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, severity, description, status, created_at, updated_at, resolved_at
		 FROM incidents WHERE status IN ('open', 'acknowledged') ORDER BY created_at`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query open incidents: %w", err))
	}
	defer rows.Close()

	var out []*lifecycle.Incident
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate open incidents: %w", err))
	}
	return out, nil
}

// AppendHistory inserts one audit entry. Rows are never updated.
func (s *Store) AppendHistory(ctx context.Context, h *lifecycle.HistoryEntry) error {
	ctx, span := startSpan(ctx, "pgstore.AppendHistory", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_history (id, alert_id, event, old_status, new_status, details, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.AlertID, h.Event, h.OldStatus, h.NewStatus, h.Details, h.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert history: %w", err))
	}
	return nil
}

// HistoryByAlert returns an alert's audit entries in insertion order.
func (s *Store) HistoryByAlert(ctx context.Context, alertID string) ([]*lifecycle.HistoryEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.HistoryByAlert", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, alert_id, event, old_status, new_status, details, created_at
		 FROM alert_history WHERE alert_id = $1 ORDER BY created_at, id`, alertID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query history: %w", err))
	}
	defer rows.Close()

	var out []*lifecycle.HistoryEntry
	for rows.Next() {
		var h lifecycle.HistoryEntry
		if err := rows.Scan(&h.ID, &h.AlertID, &h.Event, &h.OldStatus, &h.NewStatus, &h.Details, &h.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan history: %w", err))
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate history: %w", err))
	}
	return out, nil
}

// PutChannel upserts a notification channel.
func (s *Store) PutChannel(ctx context.Context, c *lifecycle.Channel) error {
	ctx, span := startSpan(ctx, "pgstore.PutChannel", "UPSERT")
	defer span.End()

	config, err := json.Marshal(c.Config)
	if err != nil {
		return fail(span, fmt.Errorf("marshal channel config: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO notification_channels (id, name, type, active, config, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type,
			active = EXCLUDED.active, config = EXCLUDED.config`,
		c.ID, c.Name, c.Type, c.Active, config, c.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert channel: %w", err))
	}
	return nil
}

// ActiveChannels returns active channels, filtered by type when types is
// non-empty, in creation order.
func (s *Store) ActiveChannels(ctx context.Context, types []string) ([]*lifecycle.Channel, error) {
	ctx, span := startSpan(ctx, "pgstore.ActiveChannels", "SELECT")
	defer span.End()

	query := `SELECT id, name, type, active, config, created_at
		 FROM notification_channels WHERE active ORDER BY created_at, id`
	args := []any{}
	if len(types) > 0 {
		query = `SELECT id, name, type, active, config, created_at
		 FROM notification_channels WHERE active AND type = ANY($1) ORDER BY created_at, id`
		args = append(args, types)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query channels: %w", err))
	}
	defer rows.Close()

	var out []*lifecycle.Channel
	for rows.Next() {
		var (
			c          lifecycle.Channel
			configJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Active, &configJSON, &c.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan channel: %w", err))
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &c.Config); err != nil {
				return nil, fail(span, fmt.Errorf("unmarshal channel config: %w", err))
			}
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate channels: %w", err))
	}
	return out, nil
}

func marshalAlertJSON(a *lifecycle.Alert) (labels, annotations, raw []byte, err error) {
	if labels, err = json.Marshal(orEmpty(a.Labels)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal labels: %w", err)
	}
	if annotations, err = json.Marshal(orEmpty(a.Annotations)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal annotations: %w", err)
	}
	if a.RawPayload != nil {
		if raw, err = json.Marshal(a.RawPayload); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal raw payload: %w", err)
		}
	}
	return labels, annotations, raw, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// scanAlert scans one alert row. Returns (nil, nil) when no row is found.
func scanAlert(row pgx.Row) (*lifecycle.Alert, error) {
	var (
		a                 lifecycle.Alert
		status, severity  string
		labelsJSON        []byte
		annotationsJSON   []byte
		rawJSON           []byte
		endedAt           *time.Time
		incidentID        *string
	)

	err := row.Scan(
		&a.ID, &a.Fingerprint, &a.Source, &a.Name, &status, &severity, &a.Description,
		&labelsJSON, &annotationsJSON, &rawJSON, &a.StartedAt, &endedAt, &incidentID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.Status = alert.Status(status)
	a.Severity = alert.Severity(severity)
	a.EndedAt = endedAt
	if incidentID != nil {
		a.IncidentID = *incidentID
	}

	if err := json.Unmarshal(labelsJSON, &a.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if err := json.Unmarshal(annotationsJSON, &a.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &a.RawPayload); err != nil {
			return nil, fmt.Errorf("unmarshal raw payload: %w", err)
		}
	}
	return &a, nil
}

// scanIncident scans one incident row. Returns (nil, nil) when no row is
// found.
func scanIncident(row pgx.Row) (*lifecycle.Incident, error) {
	var (
		in               lifecycle.Incident
		severity, status string
		resolvedAt       *time.Time
	)

	err := row.Scan(&in.ID, &in.Title, &severity, &in.Description, &status,
		&in.CreatedAt, &in.UpdatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	in.Severity = alert.Severity(severity)
	in.Status = lifecycle.IncidentStatus(status)
	in.ResolvedAt = resolvedAt
	return &in, nil
}
