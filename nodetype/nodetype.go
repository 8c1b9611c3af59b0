// Package nodetype synthesizes editor node types from MaterialX node
// definitions.
//
// A NodeType is a plain descriptor: the host editor creates every node from
// the same generic instance representation and reads sockets and properties
// from the NodeType it was created from. No Go type is generated per
// definition.
package nodetype

import (
	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/property"
	"github.com/zero-day-ai/mxgraph/value"
)

// DefaultNamespace prefixes every synthesized identifier.
const DefaultNamespace = "mx."

// Direction tells input sockets from output sockets.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// Socket is the editor-visible connection point of a declared port.
type Socket struct {
	// Name is the raw port name from the definition.
	Name        string
	DisplayName string
	Type        string
	Direction   Direction

	// BoundProperty names the instance property edited in place while the
	// socket is unconnected. Empty when there is none; outputs never have one.
	BoundProperty string
}

// NodeType is the immutable descriptor of one synthesized node type.
type NodeType struct {
	ID       string
	Label    string
	Category string
	Group    string

	// Def is the definition the type was synthesized from. It is shared, not copied.
	Def *mtlx.NodeDef

	Inputs     []Socket
	Outputs    []Socket
	Properties []*property.Descriptor

	index map[string]int
}

// Property returns the descriptor keyed by the raw name.
func (t *NodeType) Property(name string) (*property.Descriptor, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Properties[i], true
}

// Parameters returns the descriptors that come from <parameter> ports, in
// declaration order. These are drawn in the node body; input-backed
// properties are drawn in their sockets.
func (t *NodeType) Parameters() []*property.Descriptor {
	var out []*property.Descriptor
	for _, d := range t.Properties {
		if d.Source == mtlx.PortParameter {
			out = append(out, d)
		}
	}
	return out
}

// Input returns the index of the input socket with the given raw name.
func (t *NodeType) Input(name string) (int, bool) {
	return findSocket(t.Inputs, name)
}

// Output returns the index of the output socket with the given raw name.
func (t *NodeType) Output(name string) (int, bool) {
	return findSocket(t.Outputs, name)
}

// Defaults returns the initial value of every property.
func (t *NodeType) Defaults() map[string]value.Value {
	out := make(map[string]value.Value, len(t.Properties))
	for _, d := range t.Properties {
		out[d.Name] = d.InitialValue()
	}
	return out
}

func findSocket(sockets []Socket, name string) (int, bool) {
	for i, s := range sockets {
		if s.Name == name {
			return i, true
		}
	}
	return -1, false
}
