// Package memstore provides an in-memory implementation of lifecycle.Store.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/beacon/internal/lifecycle"
)

// Store holds lifecycle records in memory. Suitable for dev/testing and
// single-node deployments without a database.
type Store struct {
	mu        sync.RWMutex
	alerts    map[string]*lifecycle.Alert        // alert ID -> alert
	byKey     map[string]string                  // fingerprint+"\x00"+source -> alert ID
	incidents map[string]*lifecycle.Incident     // incident ID -> incident
	history   map[string][]*lifecycle.HistoryEntry // alert ID -> entries
	channels  []*lifecycle.Channel
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts:    make(map[string]*lifecycle.Alert),
		byKey:     make(map[string]string),
		incidents: make(map[string]*lifecycle.Incident),
		history:   make(map[string][]*lifecycle.HistoryEntry),
	}
}

func key(fingerprint, source string) string {
	return fingerprint + "\x00" + source
}

func copyAlert(a *lifecycle.Alert) *lifecycle.Alert {
	cp := *a
	cp.Labels = maps.Clone(a.Labels)
	cp.Annotations = maps.Clone(a.Annotations)
	cp.RawPayload = maps.Clone(a.RawPayload)
	return &cp
}

func copyChannel(c *lifecycle.Channel) *lifecycle.Channel {
	cp := *c
	cp.Config = maps.Clone(c.Config)
	return &cp
}

// CreateAlert stores a copy of the alert row.
func (s *Store) CreateAlert(_ context.Context, a *lifecycle.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = copyAlert(a)
	s.byKey[key(a.Fingerprint, a.Source)] = a.ID
	return nil
}

// GetAlert retrieves an alert by (fingerprint, source). Returns a copy.
func (s *Store) GetAlert(_ context.Context, fingerprint, source string) (*lifecycle.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key(fingerprint, source)]
	if !ok {
		return nil, false, nil
	}
	return copyAlert(s.alerts[id]), true, nil
}

// UpdateAlert replaces the stored row with a copy of a.
func (s *Store) UpdateAlert(_ context.Context, a *lifecycle.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = copyAlert(a)
	s.byKey[key(a.Fingerprint, a.Source)] = a.ID
	return nil
}

// LatestAlertSince returns the newest alert created at or after since.
func (s *Store) LatestAlertSince(_ context.Context, since time.Time) (*lifecycle.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *lifecycle.Alert
	for _, a := range s.alerts {
		if a.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	return copyAlert(latest), true, nil
}

// AlertsByIncident returns copies of all alerts attached to an incident.
func (s *Store) AlertsByIncident(_ context.Context, incidentID string) ([]*lifecycle.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*lifecycle.Alert
	for _, a := range s.alerts {
		if a.IncidentID == incidentID {
			out = append(out, copyAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateIncident stores a copy of the incident.
func (s *Store) CreateIncident(_ context.Context, in *lifecycle.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.incidents[in.ID] = &cp
	return nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*lifecycle.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *in
	return &cp, true, nil
}

// UpdateIncident replaces the stored incident with a copy of in.
func (s *Store) UpdateIncident(_ context.Context, in *lifecycle.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.incidents[in.ID] = &cp
	return nil
}

// OpenIncidents returns copies of incidents in open or acknowledged state,
// oldest first.
func (s *Store) OpenIncidents(_ context.Context) ([]*lifecycle.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*lifecycle.Incident
	for _, in := range s.incidents {
		if in.Status == lifecycle.IncidentOpen || in.Status == lifecycle.IncidentAcknowledged {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendHistory stores a copy of the entry. Entries are never mutated.
func (s *Store) AppendHistory(_ context.Context, h *lifecycle.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.history[h.AlertID] = append(s.history[h.AlertID], &cp)
	return nil
}

// HistoryByAlert returns copies of an alert's history entries in insertion
// order.
func (s *Store) HistoryByAlert(_ context.Context, alertID string) ([]*lifecycle.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[alertID]
	out := make([]*lifecycle.HistoryEntry, 0, len(entries))
	for _, h := range entries {
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

// PutChannel adds or replaces a notification channel.
func (s *Store) PutChannel(_ context.Context, c *lifecycle.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyChannel(c)
	for i, existing := range s.channels {
		if existing.ID == c.ID {
			s.channels[i] = cp
			return nil
		}
	}
	s.channels = append(s.channels, cp)
	return nil
}

// ActiveChannels returns active channels, filtered by type when types is
// non-empty, in insertion order.
func (s *Store) ActiveChannels(_ context.Context, types []string) ([]*lifecycle.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := map[string]bool{}
	for _, t := range types {
		wanted[t] = true
	}

	var out []*lifecycle.Channel
	for _, c := range s.channels {
		if !c.Active {
			continue
		}
		if len(wanted) > 0 && !wanted[c.Type] {
			continue
		}
		out = append(out, copyChannel(c))
	}
	return out, nil
}
