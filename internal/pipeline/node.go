// Package pipeline executes configurable processing pipelines over incoming
// alert payloads: ingest, context checks, intelligence, notification and
// transform nodes run in sequence, each contributing output downstream nodes
// can read.
package pipeline

import (
	"context"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// NodeContext is the read-only view a node gets of the run so far.
type NodeContext struct {
	// TraceID correlates the run with request logs and spans.
	TraceID string
	// RunID uniquely identifies this pipeline run.
	RunID string
	// IncidentID is set when the run is tied to a known incident.
	IncidentID string
	// Payload is the normalized inbound payload, nil for runs triggered
	// without one.
	Payload *alert.NormalizedPayload
	// PreviousOutputs maps node ID to that node's output. Nodes must treat
	// it as read-only.
	PreviousOutputs map[string]map[string]any
	// Environment is the deployment environment name (production, test).
	Environment string
	// Source names the driver that parsed the payload.
	Source string
}

// Output returns a prior node's output by node ID.
func (c *NodeContext) Output(nodeID string) (map[string]any, bool) {
	out, ok := c.PreviousOutputs[nodeID]
	return out, ok
}

// NodeResult is what one node run produced.
type NodeResult struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Output     map[string]any `json:"output,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
}

// Failed reports whether the node recorded any error.
func (r *NodeResult) Failed() bool { return len(r.Errors) > 0 }

// Node is one executable pipeline step. Execute converts expected domain
// failures into result errors instead of returning them, so the executor can
// continue the run; ValidateConfig returns one message per problem found in
// the node's config map, empty meaning valid.
type Node interface {
	Type() string
	ValidateConfig(config map[string]any) []string
	Execute(ctx context.Context, nc *NodeContext, config map[string]any) *NodeResult
}
