// Package catalog publishes the set of node types a host editor can
// instantiate.
//
// A Catalog is immutable once built. The Registry owns the active catalog
// and replaces it atomically: a rebuild constructs a complete new catalog
// before swapping it in, so readers never observe a partially built one.
package catalog

import (
	"sort"

	"github.com/zero-day-ai/mxgraph/nodetype"
	"github.com/zero-day-ai/mxgraph/property"
)

// UngroupedSection is the menu section of node types without a nodegroup.
const UngroupedSection = "other"

// Catalog is an immutable, ordered set of node types keyed by identifier.
type Catalog struct {
	namespace string
	order     []string
	types     map[string]*nodetype.NodeType
	revision  uint64
}

// Empty returns a catalog with no node types.
func Empty(namespace string) *Catalog {
	return &Catalog{namespace: namespace, types: map[string]*nodetype.NodeType{}}
}

// Get returns the node type with the given identifier.
func (c *Catalog) Get(id string) (*nodetype.NodeType, bool) {
	nt, ok := c.types[id]
	return nt, ok
}

// Lookup resolves a document category (a node string) to its node type.
func (c *Catalog) Lookup(category string) (*nodetype.NodeType, bool) {
	return c.Get(c.namespace + category)
}

// IDs returns the identifiers in menu order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Types returns the node types in menu order.
func (c *Catalog) Types() []*nodetype.NodeType {
	out := make([]*nodetype.NodeType, len(c.order))
	for i, id := range c.order {
		out[i] = c.types[id]
	}
	return out
}

// Len returns the number of node types.
func (c *Catalog) Len() int { return len(c.order) }

// Namespace returns the identifier prefix of the catalog.
func (c *Catalog) Namespace() string { return c.namespace }

// Revision increases by one with every catalog the Registry publishes.
func (c *Catalog) Revision() uint64 { return c.revision }

// Section is one group of the node creation menu.
type Section struct {
	Name  string
	Label string
	Types []*nodetype.NodeType
}

// Sections groups node types by nodegroup for the creation menu. Sections
// are sorted by name with UngroupedSection last; types keep catalog order.
func (c *Catalog) Sections() []Section {
	byGroup := make(map[string]*Section)
	var names []string
	for _, nt := range c.Types() {
		g := nt.Group
		if g == "" {
			g = UngroupedSection
		}
		sec, ok := byGroup[g]
		if !ok {
			sec = &Section{Name: g, Label: property.Prettify(g)}
			byGroup[g] = sec
			names = append(names, g)
		}
		sec.Types = append(sec.Types, nt)
	}

	sort.Slice(names, func(i, j int) bool {
		if names[i] == UngroupedSection || names[j] == UngroupedSection {
			return names[j] == UngroupedSection && names[i] != UngroupedSection
		}
		return names[i] < names[j]
	})

	out := make([]Section, len(names))
	for i, n := range names {
		out[i] = *byGroup[n]
	}
	return out
}

// with returns a copy of c with nt added or replaced and the next revision.
func (c *Catalog) with(nt *nodetype.NodeType) *Catalog {
	next := &Catalog{
		namespace: c.namespace,
		order:     c.IDs(),
		types:     make(map[string]*nodetype.NodeType, len(c.types)+1),
		revision:  c.revision + 1,
	}
	for id, t := range c.types {
		next.types[id] = t
	}
	if _, exists := next.types[nt.ID]; !exists {
		next.order = append(next.order, nt.ID)
	}
	next.types[nt.ID] = nt
	return next
}
