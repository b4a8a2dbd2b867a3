package lifecycle

import (
	"context"
	"time"
)

// Store is the persistence interface for the lifecycle engine. Lookups that
// can miss return (nil, false, nil) rather than an error.
type Store interface {
	CreateAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, fingerprint, source string) (*Alert, bool, error)
	UpdateAlert(ctx context.Context, a *Alert) error

	// LatestAlertSince returns the most recently created alert at or after
	// the given instant, newest first.
	LatestAlertSince(ctx context.Context, since time.Time) (*Alert, bool, error)

	// AlertsByIncident returns all alerts attached to an incident.
	AlertsByIncident(ctx context.Context, incidentID string) ([]*Alert, error)

	CreateIncident(ctx context.Context, in *Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, bool, error)
	UpdateIncident(ctx context.Context, in *Incident) error

	// OpenIncidents returns incidents in open or acknowledged state.
	OpenIncidents(ctx context.Context) ([]*Incident, error)

	AppendHistory(ctx context.Context, h *HistoryEntry) error
	HistoryByAlert(ctx context.Context, alertID string) ([]*HistoryEntry, error)

	// ActiveChannels returns active notification channels, filtered by type
	// when types is non-empty.
	ActiveChannels(ctx context.Context, types []string) ([]*Channel, error)
}
