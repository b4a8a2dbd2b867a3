package pipeline

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/beacon/internal/check"
)

// ContextNode runs a set of checkers and aggregates their results. A failing
// or panicking checker degrades to an "unknown" entry; it never aborts the
// node.
type ContextNode struct {
	checks *check.Registry
}

// NewContextNode creates a context-checks node over the given registry.
func NewContextNode(checks *check.Registry) *ContextNode {
	return &ContextNode{checks: checks}
}

func (n *ContextNode) Type() string { return "context_checks" }

// ValidateConfig verifies the optional "checkers" list.
func (n *ContextNode) ValidateConfig(config map[string]any) []string {
	if _, ok := config["checkers"]; ok && configStrings(config, "checkers") == nil {
		return []string{`"checkers" must be a list of checker names`}
	}
	return nil
}

// Execute runs the configured checkers, or every registered checker when the
// config names none.
func (n *ContextNode) Execute(ctx context.Context, _ *NodeContext, config map[string]any) *NodeResult {
	res := &NodeResult{}

	names := configStrings(config, "checkers")
	if len(names) == 0 {
		names = n.checks.Names()
	}

	results := make(map[string]any, len(names))
	var passed, failed, unknown int
	for _, name := range names {
		r := n.runChecker(ctx, name)
		results[name] = map[string]any{
			"status":  string(r.Status),
			"message": r.Message,
			"metrics": r.Metrics,
		}
		switch r.Status {
		case check.StatusOK:
			passed++
		case check.StatusUnknown:
			unknown++
		default:
			failed++
		}
	}

	res.Output = map[string]any{
		"checks":  results,
		"passed":  passed,
		"failed":  failed,
		"unknown": unknown,
		"total":   len(names),
	}
	return res
}

// runChecker isolates one checker behind its own recover boundary.
func (n *ContextNode) runChecker(ctx context.Context, name string) (r *check.Result) {
	defer func() {
		if p := recover(); p != nil {
			r = &check.Result{
				Status:  check.StatusUnknown,
				Message: fmt.Sprintf("checker panicked: %v", p),
			}
		}
	}()

	c, err := n.checks.Get(name)
	if err != nil {
		return &check.Result{Status: check.StatusUnknown, Message: err.Error()}
	}
	r, err = c.Check(ctx)
	if err != nil {
		return &check.Result{Status: check.StatusUnknown, Message: err.Error()}
	}
	if r == nil {
		return &check.Result{Status: check.StatusUnknown, Message: "checker returned no result"}
	}
	return r
}
