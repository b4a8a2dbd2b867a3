package pipeline

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is a declarative pipeline loaded from YAML: an ordered list of
// node steps, each with an id, a node type, and a type-specific config map.
type Definition struct {
	Name  string    `yaml:"name"`
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef is one step in a pipeline definition.
type NodeDef struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// ParseDefinition unmarshals and structurally validates a pipeline
// definition. Node types are checked later, against the builder's registered
// node set.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline definition: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a pipeline definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definition: %w", err)
	}
	return ParseDefinition(data)
}

// DefaultDefinition is the pipeline used when no definition file is
// configured: ingest, run health checks, optionally analyze, notify. The
// analysis step is only included when an intelligence provider is available.
func DefaultDefinition(provider string) *Definition {
	def := &Definition{
		Name: "default",
		Nodes: []NodeDef{
			{ID: "ingest", Type: "ingest", Config: map[string]any{}},
			{ID: "checks", Type: "context_checks", Config: map[string]any{}},
		},
	}
	if provider != "" {
		def.Nodes = append(def.Nodes, NodeDef{
			ID: "analysis", Type: "intelligence", Config: map[string]any{"provider": provider},
		})
	}
	def.Nodes = append(def.Nodes, NodeDef{ID: "notify", Type: "notify", Config: map[string]any{}})
	return def
}

func (d *Definition) validate() error {
	var errs []error
	if len(d.Nodes) == 0 {
		errs = append(errs, errors.New("pipeline has no nodes"))
	}

	seen := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("node %d: missing id", i))
			continue
		}
		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("node %q: duplicate id", n.ID))
		}
		seen[n.ID] = true
		if n.Type == "" {
			errs = append(errs, fmt.Errorf("node %q: missing type", n.ID))
		}
	}
	return errors.Join(errs...)
}
