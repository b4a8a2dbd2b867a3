package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/beacon/internal/alert"
	"github.com/linnemanlabs/beacon/internal/intel"
)

// defaultProviderTimeout bounds one provider call. A slow provider yields an
// empty recommendation list, not a failed node.
const defaultProviderTimeout = time.Second

// IntelligenceNode asks an analysis provider for recommendations on the
// current incident.
type IntelligenceNode struct {
	providers *intel.Registry
}

// NewIntelligenceNode creates an intelligence node over the given registry.
func NewIntelligenceNode(providers *intel.Registry) *IntelligenceNode {
	return &IntelligenceNode{providers: providers}
}

func (n *IntelligenceNode) Type() string { return "intelligence" }

// ValidateConfig requires a provider name; "timeout_ms" is optional.
func (n *IntelligenceNode) ValidateConfig(config map[string]any) []string {
	var errs []string
	if configString(config, "provider") == "" {
		errs = append(errs, `"provider" is required`)
	}
	if _, ok := config["timeout_ms"]; ok {
		if ms, valid := configInt(config, "timeout_ms"); !valid || ms <= 0 {
			errs = append(errs, `"timeout_ms" must be a positive integer`)
		}
	}
	return errs
}

// Execute resolves the provider and runs its analysis on a single-use
// goroutine bounded by the timeout. In test/ci environments a canned
// recommendation is returned instead of calling out.
func (n *IntelligenceNode) Execute(ctx context.Context, nc *NodeContext, config map[string]any) *NodeResult {
	res := &NodeResult{}

	name := configString(config, "provider")
	provider, err := n.providers.Get(name)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	if nc.Environment == "test" || nc.Environment == "ci" {
		res.Output = map[string]any{
			"provider": name,
			"recommendations": []map[string]any{{
				"title":       "Review alert context",
				"description": "Deterministic placeholder recommendation.",
				"priority":    "low",
			}},
		}
		return res
	}

	timeout := defaultProviderTimeout
	if ms, ok := configInt(config, "timeout_ms"); ok {
		timeout = time.Duration(ms) * time.Millisecond
	}

	recs, timedOut := n.analyze(ctx, provider, buildIncidentContext(nc), timeout)
	res.Output = map[string]any{
		"provider":        name,
		"recommendations": toMaps(recs),
	}
	if timedOut {
		res.Output["timed_out"] = true
	}
	return res
}

// analyze runs the provider call on its own goroutine. On deadline expiry the
// call is abandoned: a late result is discarded, and the provider is not
// signalled beyond context cancellation.
func (n *IntelligenceNode) analyze(ctx context.Context, p intel.Provider, in *intel.IncidentContext, timeout time.Duration) ([]intel.Recommendation, bool) {
	type outcome struct {
		recs []intel.Recommendation
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("provider panicked: %v", r)}
			}
		}()
		recs, err := p.Analyze(ctx, in)
		ch <- outcome{recs: recs, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, false
		}
		return out.recs, false
	case <-time.After(timeout):
		return nil, true
	}
}

func buildIncidentContext(nc *NodeContext) *intel.IncidentContext {
	in := &intel.IncidentContext{IncidentID: nc.IncidentID}

	if nc.Payload != nil && len(nc.Payload.Alerts) > 0 {
		first := nc.Payload.Alerts[0]
		in.AlertName = first.Name
		in.Severity = first.Severity
		in.Description = first.Description
		in.Labels = first.Labels
		in.Annotations = first.Annotations
		in.StartedAt = first.StartedAt
	}

	// prefer what ingest discovered, if it ran
	for _, out := range nc.PreviousOutputs {
		if name, ok := out["alert_name"].(string); ok && name != "" {
			in.AlertName = name
		}
		if sev, ok := out["severity"].(string); ok && sev != "" {
			in.Severity = alert.Severity(sev)
		}
	}
	return in
}

func toMaps(recs []intel.Recommendation) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		m := map[string]any{
			"title":       r.Title,
			"description": r.Description,
			"priority":    r.Priority,
		}
		if r.Command != "" {
			m["command"] = r.Command
		}
		out = append(out, m)
	}
	return out
}
