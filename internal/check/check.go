// Package check defines context checkers: small probes the pipeline runs
// against live infrastructure to enrich an alert with current state.
package check

import (
	"context"
	"fmt"
)

// Status classifies a single checker outcome.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// ErrUnknownChecker is returned when a pipeline node references a checker
// name that was never registered.
var ErrUnknownChecker = fmt.Errorf("check: unknown checker")

// Result is the outcome of one checker run. Metrics carries numeric
// readings the checker took while probing (latency, sample values).
type Result struct {
	Status  Status             `json:"status"`
	Message string             `json:"message,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Checker probes one aspect of the environment.
type Checker interface {
	Name() string
	Check(ctx context.Context) (*Result, error)
}

// Registry holds available checkers keyed by name.
type Registry struct {
	checkers map[string]Checker
}

// NewRegistry creates an empty checker registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a checker, keyed by its Name. Later registrations with the
// same name replace earlier ones.
func (r *Registry) Register(c Checker) {
	r.checkers[c.Name()] = c
}

// Get retrieves a checker by name.
func (r *Registry) Get(name string) (Checker, error) {
	c, ok := r.checkers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChecker, name)
	}
	return c, nil
}

// Names lists registered checker names, in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		out = append(out, name)
	}
	return out
}
