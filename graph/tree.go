package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zero-day-ai/mxgraph/catalog"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/nodetype"
)

// CatalogSource supplies the active catalog. *catalog.Registry implements it.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Link connects an output socket of one node to an input socket of another.
type Link struct {
	From   uuid.UUID
	Output string
	To     uuid.UUID
	Input  string
}

// Tree is an editable node graph. It is not safe for concurrent use.
type Tree struct {
	src   CatalogSource
	nodes []*Instance
	byID  map[uuid.UUID]*Instance
	links []Link
}

// NewTree returns an empty tree creating nodes from src.
func NewTree(src CatalogSource) *Tree {
	return &Tree{
		src:  src,
		byID: make(map[uuid.UUID]*Instance),
	}
}

// Catalog returns the catalog nodes are created from.
func (t *Tree) Catalog() *catalog.Catalog {
	return t.src.Current()
}

// NewNode creates a node of the type with the given identifier, labelled
// with the type label.
func (t *Tree) NewNode(typeID string) (*Instance, error) {
	nt, ok := t.Catalog().Get(typeID)
	if !ok {
		return nil, mxerr.New("create", mxerr.CodeUnknownCategory, typeID, "no such node type")
	}
	return t.Add(nt, nt.Label), nil
}

// Add creates a node of nt with the given label.
func (t *Tree) Add(nt *nodetype.NodeType, label string) *Instance {
	n := newInstance(nt, label)
	t.nodes = append(t.nodes, n)
	t.byID[n.ID] = n
	return n
}

// Node returns the node with the given id.
func (t *Tree) Node(id uuid.UUID) (*Instance, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Nodes returns the nodes in creation order.
func (t *Tree) Nodes() []*Instance {
	out := make([]*Instance, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Links returns every link in creation order.
func (t *Tree) Links() []Link {
	out := make([]Link, len(t.links))
	copy(out, t.links)
	return out
}

// Link connects output of from to input of to. An input takes at most one
// link; linking it again replaces the previous link.
func (t *Tree) Link(from *Instance, output string, to *Instance, input string) error {
	if _, ok := t.byID[from.ID]; !ok {
		return fmt.Errorf("node %q is not in the tree", from.Label)
	}
	if _, ok := t.byID[to.ID]; !ok {
		return fmt.Errorf("node %q is not in the tree", to.Label)
	}
	if _, ok := from.Type.Output(output); !ok {
		return fmt.Errorf("node %q (%s) has no output %q", from.Label, from.Type.ID, output)
	}
	if _, ok := to.Type.Input(input); !ok {
		return fmt.Errorf("node %q (%s) has no input %q", to.Label, to.Type.ID, input)
	}
	if from.ID == to.ID {
		return fmt.Errorf("node %q cannot link to itself", from.Label)
	}

	t.unlink(to.ID, input)
	t.links = append(t.links, Link{From: from.ID, Output: output, To: to.ID, Input: input})
	return nil
}

// Unlink removes the link into the given input, if any.
func (t *Tree) Unlink(to *Instance, input string) {
	t.unlink(to.ID, input)
}

func (t *Tree) unlink(to uuid.UUID, input string) {
	kept := t.links[:0]
	for _, l := range t.links {
		if l.To != to || l.Input != input {
			kept = append(kept, l)
		}
	}
	t.links = kept
}

// LinkTo returns the link into the given input.
func (t *Tree) LinkTo(to *Instance, input string) (Link, bool) {
	for _, l := range t.links {
		if l.To == to.ID && l.Input == input {
			return l, true
		}
	}
	return Link{}, false
}

// Remove deletes a node and every link touching it.
func (t *Tree) Remove(id uuid.UUID) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, n := range t.nodes {
		if n.ID == id {
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			break
		}
	}
	kept := t.links[:0]
	for _, l := range t.links {
		if l.From != id && l.To != id {
			kept = append(kept, l)
		}
	}
	t.links = kept
	return true
}

// SocketDisplay returns how the i-th input socket of n is drawn. A linked
// socket, or one without a bound property, shows its label. An unlinked
// socket whose bound property exists on the node shows that property.
func (t *Tree) SocketDisplay(n *Instance, i int) SocketDisplay {
	sock := n.Type.Inputs[i]
	d := SocketDisplay{Mode: DisplayLabel, Label: sock.DisplayName}
	if sock.BoundProperty == "" {
		return d
	}
	if _, linked := t.LinkTo(n, sock.Name); linked {
		return d
	}
	desc, ok := n.Type.Property(sock.BoundProperty)
	if !ok {
		return d
	}
	d.Mode = DisplayProperty
	d.Property = desc
	d.Value, _ = n.Value(sock.BoundProperty)
	return d
}
