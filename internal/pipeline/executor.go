package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/alert"
)

// Step pairs a node implementation with its definition-supplied id and
// config.
type Step struct {
	ID     string
	Node   Node
	Config map[string]any
}

// RunResult is the outcome of one full pipeline run.
type RunResult struct {
	RunID      string        `json:"run_id"`
	TraceID    string        `json:"trace_id,omitempty"`
	Results    []*NodeResult `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
}

// Failed reports whether any node in the run recorded an error.
func (r *RunResult) Failed() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// Executor runs a fixed sequence of steps over incoming payloads. Nodes run
// strictly sequentially; each node's output is merged into the context before
// the next node starts, and a node failure never stops the run.
type Executor struct {
	steps       []Step
	environment string
	logger      log.Logger
	metrics     *Metrics
	now         func() time.Time
}

// NewExecutor creates an executor for the given steps. metrics may be nil.
func NewExecutor(steps []Step, environment string, logger log.Logger, metrics *Metrics) *Executor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Executor{
		steps:       steps,
		environment: environment,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Run executes every step in order against the payload. traceID may be empty.
func (e *Executor) Run(ctx context.Context, traceID, source string, payload *alert.NormalizedPayload) *RunResult {
	started := e.now()
	run := &RunResult{
		RunID:     ulid.Make().String(),
		TraceID:   traceID,
		StartedAt: started,
		Results:   make([]*NodeResult, 0, len(e.steps)),
	}

	nc := &NodeContext{
		TraceID:         traceID,
		RunID:           run.RunID,
		Payload:         payload,
		PreviousOutputs: make(map[string]map[string]any, len(e.steps)),
		Environment:     e.environment,
		Source:          source,
	}

	L := e.logger.With("run_id", run.RunID, "source", source)
	L.Info(ctx, "pipeline run started", "nodes", len(e.steps))

	for _, step := range e.steps {
		res := e.runStep(ctx, step, nc)
		run.Results = append(run.Results, res)

		if res.Output != nil {
			nc.PreviousOutputs[res.NodeID] = res.Output
		}
		// the ingest node discovers the incident for the rest of the run
		if id, ok := res.Output["incident_id"].(string); ok && id != "" {
			nc.IncidentID = id
		}

		if res.Failed() {
			L.Warn(ctx, "node completed with errors",
				"node_id", res.NodeID, "node_type", res.NodeType, "errors", res.Errors)
		}
		e.metrics.observeNode(res)
	}

	run.DurationMs = e.now().Sub(started).Milliseconds()
	e.metrics.observeRun(run)
	L.Info(ctx, "pipeline run finished", "duration_ms", run.DurationMs, "failed", run.Failed())
	return run
}

// runStep executes one node inside a recover boundary. A panicking node
// produces an error result instead of killing the run.
func (e *Executor) runStep(ctx context.Context, step Step, nc *NodeContext) (res *NodeResult) {
	started := e.now()
	defer func() {
		if r := recover(); r != nil {
			res = &NodeResult{
				NodeID:     step.ID,
				NodeType:   step.Node.Type(),
				Errors:     []string{fmt.Sprintf("node panicked: %v", r)},
				DurationMs: e.now().Sub(started).Milliseconds(),
			}
		}
	}()

	res = step.Node.Execute(ctx, nc, step.Config)
	if res == nil {
		res = &NodeResult{
			NodeID:   step.ID,
			NodeType: step.Node.Type(),
			Errors:   []string{"node returned no result"},
		}
	}
	res.NodeID = step.ID
	res.NodeType = step.Node.Type()
	res.DurationMs = e.now().Sub(started).Milliseconds()
	return res
}
