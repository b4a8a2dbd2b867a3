package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// TransformNode reshapes prior node outputs without side effects. Supported
// operations: "extract" (dot-path field extraction), "filter" (keep list
// entries whose field equals a value) and "map" (field-to-field remapping).
type TransformNode struct{}

// NewTransformNode creates a transform node.
func NewTransformNode() *TransformNode { return &TransformNode{} }

func (n *TransformNode) Type() string { return "transform" }

// ValidateConfig requires an "operations" list where each entry names a
// known op, a source node and an output key.
func (n *TransformNode) ValidateConfig(config map[string]any) []string {
	ops, ok := config["operations"].([]any)
	if !ok || len(ops) == 0 {
		return []string{`"operations" must be a non-empty list`}
	}

	var errs []string
	for i, raw := range ops {
		op, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("operation %d: must be a map", i))
			continue
		}
		kind := configString(op, "op")
		switch kind {
		case "extract":
			if configString(op, "path") == "" {
				errs = append(errs, fmt.Sprintf("operation %d: extract needs a \"path\"", i))
			}
		case "filter":
			if configString(op, "field") == "" {
				errs = append(errs, fmt.Sprintf("operation %d: filter needs a \"field\"", i))
			}
		case "map":
			if fields, ok := op["fields"].(map[string]any); !ok || len(fields) == 0 {
				errs = append(errs, fmt.Sprintf("operation %d: map needs a \"fields\" mapping", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("operation %d: unknown op %q", i, kind))
		}
		if configString(op, "from") == "" {
			errs = append(errs, fmt.Sprintf("operation %d: missing \"from\" node id", i))
		}
		if configString(op, "as") == "" {
			errs = append(errs, fmt.Sprintf("operation %d: missing \"as\" output key", i))
		}
	}
	return errs
}

// Execute applies each operation in order. A failed operation records an
// error and the rest still run.
func (n *TransformNode) Execute(_ context.Context, nc *NodeContext, config map[string]any) *NodeResult {
	res := &NodeResult{Output: map[string]any{}}

	ops, _ := config["operations"].([]any)
	for i, raw := range ops {
		op, ok := raw.(map[string]any)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("operation %d: not a map", i))
			continue
		}

		source, ok := nc.Output(configString(op, "from"))
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("operation %d: no output from node %q", i, configString(op, "from")))
			continue
		}

		as := configString(op, "as")
		switch configString(op, "op") {
		case "extract":
			v, found := extractPath(source, configString(op, "path"))
			if !found {
				res.Errors = append(res.Errors, fmt.Sprintf("operation %d: path %q not found", i, configString(op, "path")))
				continue
			}
			res.Output[as] = v
		case "filter":
			res.Output[as] = filterList(source, configString(op, "path"), configString(op, "field"), op["equals"])
		case "map":
			fields, _ := op["fields"].(map[string]any)
			res.Output[as] = mapFields(source, fields)
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("operation %d: unknown op %q", i, configString(op, "op")))
		}
	}
	return res
}

// extractPath walks a dot-separated path through nested maps.
func extractPath(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// filterList keeps entries of a list (located at path, or the whole source
// map's "items" when path is empty) whose field equals want.
func filterList(source map[string]any, path, field string, want any) []any {
	var raw any
	if path != "" {
		raw, _ = extractPath(source, path)
	} else {
		raw = source["items"]
	}

	out := []any{}
	switch list := raw.(type) {
	case []any:
		for _, e := range list {
			if entry, ok := e.(map[string]any); ok && looseEqual(entry[field], want) {
				out = append(out, e)
			}
		}
	case []map[string]any:
		for _, entry := range list {
			if looseEqual(entry[field], want) {
				out = append(out, entry)
			}
		}
	}
	return out
}

// mapFields builds a new map by renaming source keys per the fields mapping
// (new-key -> source dot-path).
func mapFields(source map[string]any, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for newKey, rawPath := range fields {
		path, ok := rawPath.(string)
		if !ok {
			continue
		}
		if v, found := extractPath(source, path); found {
			out[newKey] = v
		}
	}
	return out
}

// looseEqual compares scalars across the representations YAML and JSON
// produce for the same value.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
