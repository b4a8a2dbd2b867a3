package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/beacon/internal/lifecycle"
)

// IngestNode feeds the run's payload through the lifecycle engine and
// surfaces what happened to downstream nodes.
type IngestNode struct {
	engine *lifecycle.Engine
	store  lifecycle.Store
	now    func() time.Time
}

// NewIngestNode creates an ingest node.
func NewIngestNode(engine *lifecycle.Engine, store lifecycle.Store) *IngestNode {
	return &IngestNode{engine: engine, store: store, now: time.Now}
}

func (n *IngestNode) Type() string { return "ingest" }

// ValidateConfig accepts any config; the ingest node takes none.
func (n *IngestNode) ValidateConfig(map[string]any) []string { return nil }

// Execute processes the payload and then looks up the newest alert written
// at or after the processing start to discover the incident, severity and
// fingerprint for downstream nodes. The lookup is a best-effort heuristic:
// under concurrent ingestion it may observe a row from another delivery.
func (n *IngestNode) Execute(ctx context.Context, nc *NodeContext, _ map[string]any) *NodeResult {
	res := &NodeResult{}
	if nc.Payload == nil {
		res.Errors = append(res.Errors, "no payload to ingest")
		return res
	}

	before := n.now()
	summary, err := n.engine.Process(ctx, nc.Payload)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("process payload: %v", err))
		return res
	}
	res.Errors = append(res.Errors, summary.Errors...)

	res.Output = map[string]any{
		"total":             summary.Total,
		"created":           summary.Created,
		"updated":           summary.Updated,
		"resolved":          summary.Resolved,
		"skipped":           summary.Skipped,
		"incidents_created": summary.Incidents,
		"alert_ids":         summary.AlertIDs,
	}

	latest, ok, err := n.store.LatestAlertSince(ctx, before)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("lookup latest alert: %v", err))
		return res
	}
	if ok {
		res.Output["fingerprint"] = latest.Fingerprint
		res.Output["severity"] = string(latest.Severity)
		res.Output["alert_name"] = latest.Name
		if latest.IncidentID != "" {
			res.Output["incident_id"] = latest.IncidentID
		}
	}
	return res
}
