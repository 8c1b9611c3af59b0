// Package mtlx reads MaterialX documents.
//
// Two kinds of content are extracted: node definitions (<nodedef>), which
// describe the node types a library offers, and node records, which are the
// concrete nodes of a material graph. Both are parsed with encoding/xml and
// validated record by record, so one malformed definition never prevents the
// rest of a library from loading.
package mtlx

// UI attribute names recognised on ports.
const (
	AttrValue     = "value"
	AttrUIMin     = "uimin"
	AttrUIMax     = "uimax"
	AttrUISoftMin = "uisoftmin"
	AttrUISoftMax = "uisoftmax"
)

// PortKind tells parameters, inputs and outputs apart.
type PortKind int

const (
	PortParameter PortKind = iota
	PortInput
	PortOutput
)

func (k PortKind) String() string {
	switch k {
	case PortParameter:
		return "parameter"
	case PortInput:
		return "input"
	case PortOutput:
		return "output"
	}
	return "unknown"
}

// Port is a declared parameter, input or output of a node definition.
// Optional attributes are nil when absent from the document.
type Port struct {
	Kind PortKind
	Name string
	Type string

	Value     *string
	UIMin     *string
	UIMax     *string
	UISoftMin *string
	UISoftMax *string

	UIName   string
	UIFolder string
	Doc      string
}

// HasValue reports whether the port declares a default value string.
func (p Port) HasValue() bool { return p.Value != nil }

// Attribute returns a raw UI attribute by its MaterialX name.
func (p Port) Attribute(name string) (string, bool) {
	var v *string
	switch name {
	case AttrValue:
		v = p.Value
	case AttrUIMin:
		v = p.UIMin
	case AttrUIMax:
		v = p.UIMax
	case AttrUISoftMin:
		v = p.UISoftMin
	case AttrUISoftMax:
		v = p.UISoftMax
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

// NodeDef is an immutable node definition. Loaders hand out pointers and
// every node type synthesized from a definition refers back to the same one.
type NodeDef struct {
	// Name is the nodedef identity (e.g. "ND_standard_surface_surfaceshader").
	Name string

	// NodeString is the category the definition implements (e.g. "standard_surface").
	NodeString string

	// Type is the output type of single-output definitions.
	Type string

	NodeGroup string
	Version   string
	Doc       string

	// Source names the document the definition was read from.
	Source string

	Parameters []Port
	Inputs     []Port
	Outputs    []Port
}

// Ports returns parameters, inputs and outputs in that order.
func (d *NodeDef) Ports() []Port {
	out := make([]Port, 0, len(d.Parameters)+len(d.Inputs)+len(d.Outputs))
	out = append(out, d.Parameters...)
	out = append(out, d.Inputs...)
	return append(out, d.Outputs...)
}

// Node is a concrete node record of a material graph document.
type Node struct {
	// Category is the element tag, which names the node type.
	Category string
	Name     string
	Type     string

	// Graph is the enclosing nodegraph name, empty for document-level nodes.
	Graph string

	Inputs []NodeInput
}

// NodeInput is one <input> of a node record: either a literal value or a
// connection to another node's output.
type NodeInput struct {
	Name     string
	Type     string
	Value    *string
	NodeName string
	Output   string
}

// Connected reports whether the input references an upstream node.
func (in NodeInput) Connected() bool { return in.NodeName != "" }

// Document is a parsed MaterialX document.
type Document struct {
	Name     string
	Version  string
	NodeDefs []*NodeDef
	Nodes    []Node
}
