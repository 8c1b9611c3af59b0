package nodetype

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/property"
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithNamespace sets the identifier prefix (DefaultNamespace when unset).
func WithNamespace(ns string) Option {
	return func(s *Synthesizer) {
		s.namespace = ns
	}
}

// WithLogger sets the logger omitted properties are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for per-definition spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Synthesizer) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// Synthesizer builds NodeTypes from node definitions.
type Synthesizer struct {
	namespace string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSynthesizer returns a Synthesizer configured by opts.
func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		namespace: DefaultNamespace,
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("mxgraph/nodetype"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "nodetype")
	return s
}

// Namespace returns the identifier prefix.
func (s *Synthesizer) Namespace() string { return s.namespace }

// ID returns the identifier a node string synthesizes to.
func (s *Synthesizer) ID(nodeString string) string {
	return s.namespace + nodeString
}

// Synthesize builds the node type of def.
//
// Properties are built for parameters, then inputs, in declaration order;
// ports with unsupported types are omitted and reported. Input sockets bind
// to the property named after the lower-cased input name when one exists.
// The returned diagnostics never prevent the type from being built.
func (s *Synthesizer) Synthesize(ctx context.Context, def *mtlx.NodeDef) (*NodeType, []error) {
	_, span := s.tracer.Start(ctx, "nodetype.synthesize", trace.WithAttributes(
		attribute.String("nodedef", def.Name),
		attribute.String("node", def.NodeString),
	))
	defer span.End()

	nt := &NodeType{
		ID:       s.ID(def.NodeString),
		Label:    property.Prettify(def.NodeString),
		Category: def.NodeString,
		Group:    def.NodeGroup,
		Def:      def,
		index:    make(map[string]int, len(def.Parameters)+len(def.Inputs)),
	}

	var diags mxerr.Diagnostics
	for _, ports := range [][]mtlx.Port{def.Parameters, def.Inputs} {
		for _, p := range ports {
			d, errs := property.Build(p)
			for _, err := range errs {
				diags.Add(withNodeDef(err, def))
			}
			if d == nil {
				continue
			}
			nt.index[d.Name] = len(nt.Properties)
			nt.Properties = append(nt.Properties, d)
		}
	}

	for _, in := range def.Inputs {
		sock := Socket{
			Name:        in.Name,
			DisplayName: property.Prettify(in.Name),
			Type:        in.Type,
			Direction:   DirectionInput,
		}
		if _, ok := nt.index[strings.ToLower(in.Name)]; ok {
			sock.BoundProperty = strings.ToLower(in.Name)
		}
		nt.Inputs = append(nt.Inputs, sock)
	}

	for _, out := range def.Outputs {
		nt.Outputs = append(nt.Outputs, Socket{
			Name:        out.Name,
			DisplayName: property.Prettify(out.Name),
			Type:        out.Type,
			Direction:   DirectionOutput,
		})
	}

	for _, err := range diags.Errors() {
		mxerr.Log(ctx, s.logger, err)
	}

	span.SetAttributes(
		attribute.Int("properties", len(nt.Properties)),
		attribute.Int("omitted", diags.Count(mxerr.CodeUnsupportedType)),
	)
	return nt, diags.Errors()
}

func withNodeDef(err error, def *mtlx.NodeDef) error {
	if e, ok := err.(*mxerr.Error); ok {
		return e.WithDetails(map[string]any{"nodedef": def.Name})
	}
	return err
}
