// Package intel defines intelligence providers: analysis backends the
// pipeline consults for remediation recommendations on an incident.
package intel

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/check"
)

// ErrUnknownProvider is returned when a pipeline node references a provider
// name that was never registered.
var ErrUnknownProvider = fmt.Errorf("intel: unknown provider")

// IncidentContext is everything a provider gets to reason about: the alert
// that fired, its incident grouping, and the latest checker results.
type IncidentContext struct {
	IncidentID  string                   `json:"incident_id,omitempty"`
	AlertName   string                   `json:"alert_name"`
	Severity    alert.Severity           `json:"severity"`
	Description string                   `json:"description,omitempty"`
	Labels      map[string]string        `json:"labels,omitempty"`
	Annotations map[string]string        `json:"annotations,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	Checks      map[string]*check.Result `json:"checks,omitempty"`
}

// Recommendation is one suggested remediation step.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"` // high, medium, low
	Command     string `json:"command,omitempty"`
}

// Provider produces recommendations for an incident.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, in *IncidentContext) ([]Recommendation, error)
}

// Registry holds available providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, keyed by its Name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}
