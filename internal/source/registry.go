package source

// Registry holds source drivers in explicit registration order. Detection
// correctness depends on that order, so it is fixed here and never derived
// from map iteration.
type Registry struct {
	order   []string
	drivers map[string]Driver
	generic string
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Default builds the registry with all built-in drivers in their documented
// detection order, most specific shapes first, generic last.
func Default() *Registry {
	r := NewRegistry()
	// Grafana before Alertmanager: Grafana unified-alerting webhooks carry
	// the full Alertmanager envelope, so the broader predicate would claim
	// them first.
	r.Register(NewGrafana())
	r.Register(NewAlertmanager())
	r.Register(NewOpsgenie())
	r.Register(NewPagerDuty())
	r.Register(NewDatadog())
	r.Register(NewNewRelic())
	r.Register(NewZabbix())
	r.RegisterGeneric(NewGeneric())
	return r
}

// Register adds a driver, keyed and ordered by its Name.
func (r *Registry) Register(d Driver) {
	if _, dup := r.drivers[d.Name()]; dup {
		return
	}
	r.drivers[d.Name()] = d
	r.order = append(r.order, d.Name())
}

// RegisterGeneric adds the catch-all driver. It participates in Get but is
// skipped during the first detection pass.
func (r *Registry) RegisterGeneric(d Driver) {
	r.Register(d)
	r.generic = d.Name()
}

// Get returns the driver registered under name.
func (r *Registry) Get(name string) (Driver, bool) {
	d, ok := r.drivers[name]
	return d, ok
}

// Names returns driver names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Detect finds the driver for a payload: first registered driver (generic
// excluded) whose Validate accepts it wins; the generic driver is consulted
// last. ErrNoDriver when nothing accepts the payload.
func (r *Registry) Detect(payload map[string]any) (Driver, error) {
	for _, name := range r.order {
		if name == r.generic {
			continue
		}
		if d := r.drivers[name]; d.Validate(payload) {
			return d, nil
		}
	}
	if r.generic != "" {
		if d := r.drivers[r.generic]; d.Validate(payload) {
			return d, nil
		}
	}
	return nil, ErrNoDriver
}
