package catalog

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/mxgraph/nodetype"
)

// Filter is a compiled menu filter expression.
//
// Expressions are CEL over a single map variable named node with the keys
// id, label, category, group, type, inputs, outputs and parameters, e.g.
//
//	node.group == "pbr" && "base_color" in node.inputs
type Filter struct {
	expr string
	prg  cel.Program
}

// CompileFilter parses and type-checks expr. The expression must evaluate
// to a bool.
func CompileFilter(expr string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("node", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to plan filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match reports whether nt satisfies the filter.
func (f *Filter) Match(nt *nodetype.NodeType) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"node": Fields(nt)})
	if err != nil {
		return false, fmt.Errorf("filter %q on %s: %w", f.expr, nt.ID, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q on %s returned %T, want bool", f.expr, nt.ID, out.Value())
	}
	return b, nil
}

// Filter returns the node types matching expr, in catalog order. An empty
// expression matches everything.
func (c *Catalog) Filter(expr string) ([]*nodetype.NodeType, error) {
	if expr == "" {
		return c.Types(), nil
	}
	f, err := CompileFilter(expr)
	if err != nil {
		return nil, err
	}
	var out []*nodetype.NodeType
	for _, nt := range c.Types() {
		ok, err := f.Match(nt)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, nt)
		}
	}
	return out, nil
}

// Fields returns the filter view of nt.
func Fields(nt *nodetype.NodeType) map[string]any {
	names := func(ss []nodetype.Socket) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.Name
		}
		return out
	}
	params := nt.Parameters()
	paramNames := make([]string, len(params))
	for i, d := range params {
		paramNames[i] = d.Name
	}

	typ := ""
	if nt.Def != nil {
		typ = nt.Def.Type
	}
	return map[string]any{
		"id":         nt.ID,
		"label":      nt.Label,
		"category":   nt.Category,
		"group":      nt.Group,
		"type":       typ,
		"inputs":     names(nt.Inputs),
		"outputs":    names(nt.Outputs),
		"parameters": paramNames,
	}
}
