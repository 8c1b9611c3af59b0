package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/mxerr"
	"github.com/zero-day-ai/mxgraph/nodetype"
)

// Observer is notified after every catalog swap, on the goroutine that
// performed it. Writers are serialized while observers run, so an observer
// must not call back into the Registry.
type Observer func(ctx context.Context, c *Catalog)

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	namespace string
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	observers []Observer
}

// WithNamespace sets the identifier prefix of synthesized node types.
func WithNamespace(ns string) Option {
	return func(c *registryConfig) { c.namespace = ns }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) { c.logger = logger }
}

// WithTracer sets the tracer for rebuild and synthesis spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *registryConfig) { c.tracer = tracer }
}

// WithMeter sets the meter load statistics are recorded with.
func WithMeter(meter metric.Meter) Option {
	return func(c *registryConfig) { c.meter = meter }
}

// WithObserver adds a swap observer.
func WithObserver(o Observer) Option {
	return func(c *registryConfig) { c.observers = append(c.observers, o) }
}

// Report summarises one rebuild.
type Report struct {
	Catalog     *Catalog
	Sources     int
	Loaded      int
	Skipped     int
	Duration    time.Duration
	Diagnostics []error
}

type registryMetrics struct {
	loaded  metric.Int64Counter
	skipped metric.Int64Counter
	types   metric.Int64Gauge
}

// Registry owns the active catalog.
//
// Readers call Current and keep using the catalog they got; writers
// (Rebuild, Register) are serialized and publish a new catalog with a
// single atomic swap.
type Registry struct {
	current atomic.Pointer[Catalog]

	mu        sync.Mutex
	loader    *mtlx.Loader
	synth     *nodetype.Synthesizer
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   registryMetrics
	observers []registeredObserver
	lastID    uint64
}

type registeredObserver struct {
	id uint64
	fn Observer
}

// NewRegistry returns a Registry holding an empty catalog.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := registryConfig{namespace: nodetype.DefaultNamespace}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = noop.NewTracerProvider().Tracer("mxgraph/catalog")
	}
	if cfg.meter == nil {
		cfg.meter = metricnoop.NewMeterProvider().Meter("mxgraph/catalog")
	}

	r := &Registry{
		loader: mtlx.NewLoader(cfg.logger),
		synth: nodetype.NewSynthesizer(
			nodetype.WithNamespace(cfg.namespace),
			nodetype.WithLogger(cfg.logger),
			nodetype.WithTracer(cfg.tracer),
		),
		logger: cfg.logger.With("component", "catalog"),
		tracer: cfg.tracer,
	}
	for _, o := range cfg.observers {
		r.addObserver(o)
	}

	var err error
	r.metrics.loaded, err = cfg.meter.Int64Counter("mxgraph.nodedefs.loaded",
		metric.WithDescription("Node definitions synthesized into a catalog"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create loaded counter: %w", err)
	}
	r.metrics.skipped, err = cfg.meter.Int64Counter("mxgraph.nodedefs.skipped",
		metric.WithDescription("Schema records and sources skipped during a load"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create skipped counter: %w", err)
	}
	r.metrics.types, err = cfg.meter.Int64Gauge("mxgraph.catalog.types",
		metric.WithDescription("Node types in the active catalog"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("create types gauge: %w", err)
	}

	r.current.Store(Empty(cfg.namespace))
	return r, nil
}

// Current returns the active catalog. It is never nil.
func (r *Registry) Current() *Catalog {
	return r.current.Load()
}

// AddObserver registers o to be called after every later swap. The
// returned function unregisters it; calling it more than once is a no-op.
func (r *Registry) AddObserver(o Observer) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.addObserver(o)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.observers = slices.DeleteFunc(r.observers, func(ro registeredObserver) bool {
			return ro.id == id
		})
	}
}

// Observers returns the number of registered observers.
func (r *Registry) Observers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *Registry) addObserver(o Observer) uint64 {
	r.lastID++
	r.observers = append(r.observers, registeredObserver{id: r.lastID, fn: o})
	return r.lastID
}

// Namespace returns the identifier prefix of synthesized node types.
func (r *Registry) Namespace() string {
	return r.synth.Namespace()
}

// Rebuild loads every source, synthesizes a node type per definition and
// swaps the result in as the active catalog. Nothing in the sources can
// make it fail: skipped records, omitted properties and identifier
// collisions are returned in the report.
func (r *Registry) Rebuild(ctx context.Context, sources ...mtlx.Source) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "catalog.rebuild", trace.WithAttributes(
		attribute.Int("sources", len(sources)),
	))
	defer span.End()

	lib := r.loader.Load(ctx, sources...)

	var diags mxerr.Diagnostics
	diags.Append(lib.Diagnostics...)

	b := NewBuilder(r.synth.Namespace())
	for _, def := range lib.Defs {
		nt, errs := r.synth.Synthesize(ctx, def)
		diags.Append(errs...)
		b.Add(nt)
	}
	for _, err := range b.Diagnostics() {
		mxerr.Log(ctx, r.logger, err)
	}
	diags.Append(b.Diagnostics()...)

	next := b.Build()
	next.revision = r.Current().revision + 1
	r.swap(ctx, next)

	rep := &Report{
		Catalog:     next,
		Sources:     len(sources),
		Loaded:      len(lib.Defs),
		Skipped:     len(lib.Diagnostics),
		Duration:    time.Since(start),
		Diagnostics: diags.Errors(),
	}

	r.metrics.loaded.Add(ctx, int64(rep.Loaded))
	r.metrics.skipped.Add(ctx, int64(rep.Skipped))
	span.SetAttributes(
		attribute.Int("nodedefs", rep.Loaded),
		attribute.Int("types", next.Len()),
		attribute.Int("diagnostics", len(rep.Diagnostics)),
	)
	r.logger.InfoContext(ctx, "catalog rebuilt",
		"revision", next.revision,
		"types", next.Len(),
		"nodedefs", rep.Loaded,
		"skipped", rep.Skipped,
		"diagnostics", len(rep.Diagnostics),
		"duration", rep.Duration)

	return rep
}

// Register synthesizes def and publishes a catalog containing it. A node
// type with the same identifier is replaced, so nodes created afterwards
// use the new layout.
func (r *Registry) Register(ctx context.Context, def *mtlx.NodeDef) (*nodetype.NodeType, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nt, errs := r.synth.Synthesize(ctx, def)
	cur := r.Current()
	if prev, ok := cur.Get(nt.ID); ok {
		r.logger.WarnContext(ctx, "replacing registered node type",
			"id", nt.ID, "nodedef", def.Name, "replaced", prev.Def.Name)
	}
	r.swap(ctx, cur.with(nt))
	return nt, errs
}

func (r *Registry) swap(ctx context.Context, next *Catalog) {
	r.current.Store(next)
	r.metrics.types.Record(ctx, int64(next.Len()))
	for _, o := range r.observers {
		o.fn(ctx, next)
	}
}
