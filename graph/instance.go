// Package graph holds editable node graphs built from a catalog and the
// importer that turns MaterialX node records into them.
//
// Every node is the same generic Instance parameterised by the NodeType it
// was created from; the type supplies sockets and property descriptors, the
// instance supplies identity, a label and the current property values.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/nodetype"
	"github.com/zero-day-ai/mxgraph/property"
	"github.com/zero-day-ai/mxgraph/value"
)

// Instance is one node of a Tree.
type Instance struct {
	ID    uuid.UUID
	Label string
	// Graph is the nodegraph the node was imported from, if any.
	Graph string
	Type  *nodetype.NodeType

	values map[string]value.Value
}

func newInstance(nt *nodetype.NodeType, label string) *Instance {
	return &Instance{
		ID:     uuid.New(),
		Label:  label,
		Type:   nt,
		values: nt.Defaults(),
	}
}

// Value returns the current value of the named property.
func (n *Instance) Value(name string) (value.Value, bool) {
	v, ok := n.values[name]
	return v, ok
}

// Values returns a copy of every property value.
func (n *Instance) Values() map[string]value.Value {
	out := make(map[string]value.Value, len(n.values))
	for k, v := range n.values {
		out[k] = v
	}
	return out
}

// Set assigns the named property. The value must match the descriptor's
// kind, and vectors its component count. Integers are widened for float
// properties.
func (n *Instance) Set(name string, v value.Value) error {
	d, ok := n.Type.Property(name)
	if !ok {
		return fmt.Errorf("node %q (%s) has no property %q", n.Label, n.Type.ID, name)
	}
	if d.Kind == property.KindFloat && v.Kind() == value.KindInteger {
		f, _ := v.AsFloat()
		v = value.Float(f)
	}
	if !d.Accepts(v) {
		return mxerr.Newf("set", mxerr.CodeCoercion, name,
			"%s value %s does not fit %s property", v.Kind(), v, d.Type).
			WithDetails(map[string]any{"node": n.Label, "type": d.Type})
	}
	n.values[name] = v
	return nil
}

// Reset restores the named property to its schema default.
func (n *Instance) Reset(name string) {
	if d, ok := n.Type.Property(name); ok {
		n.values[name] = d.InitialValue()
	}
}

// IsDefault reports whether the named property still holds its initial value.
func (n *Instance) IsDefault(name string) bool {
	d, ok := n.Type.Property(name)
	if !ok {
		return false
	}
	return n.values[name].Equal(d.InitialValue())
}

// DisplayMode tells how the editor draws an input socket.
type DisplayMode int

const (
	// DisplayLabel draws the socket name only.
	DisplayLabel DisplayMode = iota
	// DisplayProperty draws an in-place editor for the bound property.
	DisplayProperty
)

// SocketDisplay is what the editor draws for one input socket.
type SocketDisplay struct {
	Mode     DisplayMode
	Label    string
	Property *property.Descriptor
	Value    value.Value
}
