package pipeline

import (
	"errors"
	"fmt"
)

// ErrUnknownNodeType is returned when a definition references a node type
// that was never registered with the builder.
var ErrUnknownNodeType = fmt.Errorf("pipeline: unknown node type")

// Builder turns a Definition into executable steps. Node implementations are
// registered once by type; one instance serves every step of that type.
type Builder struct {
	nodes map[string]Node
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]Node)}
}

// RegisterNode adds a node implementation, keyed by its Type.
func (b *Builder) RegisterNode(n Node) {
	b.nodes[n.Type()] = n
}

// Build resolves every definition step to a registered node and validates
// its config. All problems are reported together.
func (b *Builder) Build(def *Definition) ([]Step, error) {
	var errs []error
	steps := make([]Step, 0, len(def.Nodes))

	for _, nd := range def.Nodes {
		node, ok := b.nodes[nd.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("node %q: %w: %q", nd.ID, ErrUnknownNodeType, nd.Type))
			continue
		}
		for _, msg := range node.ValidateConfig(nd.Config) {
			errs = append(errs, fmt.Errorf("node %q: %s", nd.ID, msg))
		}
		steps = append(steps, Step{ID: nd.ID, Node: node, Config: nd.Config})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return steps, nil
}
