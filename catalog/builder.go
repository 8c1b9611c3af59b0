package catalog

import (
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/nodetype"
)

// Builder accumulates node types for a new catalog. It is used once and
// discarded; the catalog it builds shares nothing mutable with it.
type Builder struct {
	namespace string
	order     []string
	types     map[string]*nodetype.NodeType
	diags     mxerr.Diagnostics
}

// NewBuilder returns an empty Builder for the given namespace.
func NewBuilder(namespace string) *Builder {
	return &Builder{
		namespace: namespace,
		types:     make(map[string]*nodetype.NodeType),
	}
}

// Add registers nt. When the identifier is already taken the later node
// type replaces the earlier one in place and a DuplicateIdentifier warning
// is recorded.
func (b *Builder) Add(nt *nodetype.NodeType) {
	if prev, exists := b.types[nt.ID]; exists {
		b.diags.Add(mxerr.Newf("synthesize", mxerr.CodeDuplicateIdentifier, nt.ID,
			"nodedef %s replaces %s", nt.Def.Name, prev.Def.Name).
			WithSeverity(mxerr.SeverityWarning).
			WithDetails(map[string]any{
				"replaced": prev.Def.Name,
				"source":   nt.Def.Source,
			}))
	} else {
		b.order = append(b.order, nt.ID)
	}
	b.types[nt.ID] = nt
}

// Diagnostics returns the collisions recorded so far.
func (b *Builder) Diagnostics() []error { return b.diags.Errors() }

// Build returns the catalog. The Builder must not be used afterwards.
func (b *Builder) Build() *Catalog {
	c := &Catalog{
		namespace: b.namespace,
		order:     b.order,
		types:     b.types,
	}
	b.order, b.types = nil, nil
	return c
}
