package graph

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/mxgraph/catalog"
	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/value"
)

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the importer logger.
func WithLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithTracer sets the tracer for import spans.
func WithTracer(tracer trace.Tracer) ImporterOption {
	return func(i *Importer) {
		if tracer != nil {
			i.tracer = tracer
		}
	}
}

// WithValueOverrides makes the importer apply the literal input values of
// node records once every node exists. Off by default: imported nodes keep
// their schema defaults.
func WithValueOverrides(enabled bool) ImporterOption {
	return func(i *Importer) {
		i.applyValues = enabled
	}
}

// Importer builds Tree nodes from MaterialX node records.
type Importer struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	applyValues bool
}

// NewImporter returns an Importer configured by opts.
func NewImporter(opts ...ImporterOption) *Importer {
	i := &Importer{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("mxgraph/graph"),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "graph.importer")
	return i
}

// Result is the outcome of one import.
type Result struct {
	Imported    int
	Skipped     int
	Links       int
	Nodes       []*Instance
	Diagnostics []error
}

type nodeKey struct {
	graph string
	name  string
}

// scopeEntry is one node record of the document being imported. inst is nil
// when the record was skipped.
type scopeEntry struct {
	key      nodeKey
	category string
	inst     *Instance
}

// scope indexes the node records of a document while keeping document order
// for name lookups across graphs.
type scope struct {
	byKey map[nodeKey]*scopeEntry
	order []*scopeEntry
}

func newScope(size int) *scope {
	return &scope{byKey: make(map[nodeKey]*scopeEntry, size)}
}

func (s *scope) add(e *scopeEntry) {
	if _, dup := s.byKey[e.key]; !dup {
		s.order = append(s.order, e)
	} else {
		for i, o := range s.order {
			if o.key == e.key {
				s.order[i] = e
				break
			}
		}
	}
	s.byKey[e.key] = e
}

// resolve finds a node by name in the given graph first, then in the rest
// of the document. A name matching nodes in more than one other graph
// resolves to nothing and reports every candidate graph.
func (s *scope) resolve(graph, name string) (*scopeEntry, []string) {
	if e, ok := s.byKey[nodeKey{graph: graph, name: name}]; ok {
		return e, nil
	}
	var found *scopeEntry
	var graphs []string
	for _, e := range s.order {
		if e.key.name != name {
			continue
		}
		found = e
		graphs = append(graphs, e.key.graph)
	}
	if len(graphs) > 1 {
		return nil, graphs
	}
	return found, nil
}

type pending struct {
	rec  mtlx.Node
	inst *Instance
}

// Import adds a node to tree for every record of doc whose category is in
// the tree's catalog. Unknown categories are skipped and reported.
// Connections whose source node or sockets cannot be resolved are dropped
// and reported while the node itself is kept. The returned error is non-nil
// only when ctx is already done.
func (i *Importer) Import(ctx context.Context, doc *mtlx.Document, tree *Tree) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := i.tracer.Start(ctx, "graph.import", trace.WithAttributes(
		attribute.String("document", doc.Name),
		attribute.Int("records", len(doc.Nodes)),
	))
	defer span.End()

	// one snapshot for the whole document
	cat := tree.Catalog()

	res := &Result{}
	var diags mxerr.Diagnostics
	var created []pending
	nodes := newScope(len(doc.Nodes))

	for _, rec := range doc.Nodes {
		key := nodeKey{graph: rec.Graph, name: rec.Name}
		nt, ok := cat.Lookup(rec.Category)
		if !ok {
			diags.Add(mxerr.Newf("import", mxerr.CodeUnknownCategory, rec.Category,
				"node %q has unknown category %q", rec.Name, rec.Category).
				WithSeverity(mxerr.SeverityWarning).
				WithDetails(map[string]any{"node": rec.Name, "document": doc.Name}))
			nodes.add(&scopeEntry{key: key, category: rec.Category})
			res.Skipped++
			continue
		}

		inst := tree.Add(nt, rec.Name)
		inst.Graph = rec.Graph
		nodes.add(&scopeEntry{key: key, category: rec.Category, inst: inst})
		created = append(created, pending{rec: rec, inst: inst})
		res.Nodes = append(res.Nodes, inst)
	}
	res.Imported = len(res.Nodes)

	// connections and values are resolved once every node exists, so
	// records may reference nodes declared after them
	for _, p := range created {
		for _, in := range p.rec.Inputs {
			if in.Connected() {
				if err := i.connect(tree, p, in, nodes); err != nil {
					diags.Add(err)
					continue
				}
				res.Links++
				continue
			}
			if i.applyValues && in.Value != nil {
				diags.Add(i.applyValue(p, in))
			}
		}
	}

	for _, err := range diags.Errors() {
		mxerr.Log(ctx, i.logger, err)
	}
	res.Diagnostics = diags.Errors()

	span.SetAttributes(
		attribute.Int("imported", res.Imported),
		attribute.Int("skipped", res.Skipped),
		attribute.Int("links", res.Links),
	)
	i.logger.InfoContext(ctx, "imported document",
		"document", doc.Name,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"links", res.Links,
		"diagnostics", len(res.Diagnostics))
	return res, nil
}

// ImportFile reads the document at path and imports it into tree.
func (i *Importer) ImportFile(ctx context.Context, path string, tree *Tree) (*Result, error) {
	doc, parseErrs, err := mtlx.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := i.Import(ctx, doc, tree)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = append(parseErrs, res.Diagnostics...)
	return res, nil
}

func (i *Importer) connect(tree *Tree, p pending, in mtlx.NodeInput, nodes *scope) error {
	malformed := func(format string, args ...any) *mxerr.Error {
		return mxerr.Newf("import", mxerr.CodeMalformedConnection, p.rec.Name, format, args...).
			WithSeverity(mxerr.SeverityWarning).
			WithDetails(map[string]any{"input": in.Name, "nodename": in.NodeName})
	}

	entry, ambiguous := nodes.resolve(p.rec.Graph, in.NodeName)
	switch {
	case len(ambiguous) > 0:
		return malformed("input %q references node %q found in graphs %q", in.Name, in.NodeName, ambiguous)
	case entry == nil:
		return malformed("input %q references missing node %q", in.Name, in.NodeName)
	case entry.inst == nil:
		return malformed("input %q references node %q of unknown category %q", in.Name, in.NodeName, entry.category)
	}
	src := entry.inst

	output := in.Output
	if output == "" {
		if len(src.Type.Outputs) == 0 {
			return malformed("node %q has no outputs", in.NodeName)
		}
		output = src.Type.Outputs[0].Name
	}

	if err := tree.Link(src, output, p.inst, in.Name); err != nil {
		return malformed("cannot link input %q", in.Name).WithCause(err)
	}
	return nil
}

func (i *Importer) applyValue(p pending, in mtlx.NodeInput) error {
	d, ok := p.inst.Type.Property(in.Name)
	if !ok {
		return nil
	}
	v, err := value.Coerce(d.Type, *in.Value, false)
	if err == nil && v.IsNone() {
		err = fmt.Errorf("no value for type %q", d.Type)
	}
	if err == nil {
		err = p.inst.Set(in.Name, v)
	}
	if err != nil {
		return mxerr.Newf("import", mxerr.CodeCoercion, p.rec.Name,
			"input %q keeps its default", in.Name).
			WithSeverity(mxerr.SeverityWarning).
			WithCause(err).
			WithDetails(map[string]any{"input": in.Name, "value": *in.Value})
	}
	return nil
}

var _ CatalogSource = (*catalog.Registry)(nil)
