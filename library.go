package mxgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/zero-day-ai/mxgraph/catalog"
	"github.com/zero-day-ai/mxgraph/config"
	"github.com/zero-day-ai/mxgraph/graph"
	"github.com/zero-day-ai/mxgraph/health"
	"github.com/zero-day-ai/mxgraph/mtlx"
	"github.com/zero-day-ai/mxgraph/nodetype"
	"github.com/zero-day-ai/mxgraph/publish"
	"github.com/zero-day-ai/mxgraph/serve"
)

// Library ties a configuration to a catalog registry, a document importer
// and the configured publishers.
//
// All methods are safe for concurrent use.
type Library struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *catalog.Registry
	importer   *graph.Importer
	publishers []publish.Publisher

	mu     sync.Mutex
	closed bool
}

// New builds a Library. Publishers named by the configuration are
// connected here, so New fails when a configured Redis or etcd endpoint is
// unreachable.
func New(opts ...Option) (*Library, error) {
	const op = "mxgraph.New"

	lc := &libraryConfig{}
	for _, opt := range opts {
		opt(lc)
	}

	cfg := lc.cfg
	if lc.configPath != "" {
		loaded, err := config.Load(lc.configPath)
		if err != nil {
			return nil, newConfigurationError(op, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, newConfigurationError(op, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}

	logger := lc.logger
	if logger == nil {
		logger = cfg.Logging.NewLogger(os.Stderr)
	}

	pubs, err := connectPublishers(cfg.Publish, cfg.Serve)
	if err != nil {
		return nil, newNetworkError(op, err)
	}
	pubs = append(pubs, lc.publishers...)

	regOpts := []catalog.Option{
		catalog.WithNamespace(cfg.Namespace),
		catalog.WithLogger(logger),
		catalog.WithTracer(lc.tracer),
		catalog.WithMeter(lc.meter),
	}
	if len(pubs) > 0 {
		regOpts = append(regOpts, catalog.WithObserver(
			publish.Observer(pubs, publish.WithLogger(logger), publish.WithTracer(lc.tracer)),
		))
	}
	registry, err := catalog.NewRegistry(regOpts...)
	if err != nil {
		_ = publish.CloseAll(pubs)
		return nil, &Error{Op: op, Kind: KindInternal, Err: err}
	}

	return &Library{
		cfg:      cfg,
		logger:   logger.With("component", "mxgraph"),
		registry: registry,
		importer: graph.NewImporter(
			graph.WithLogger(logger),
			graph.WithTracer(lc.tracer),
			graph.WithValueOverrides(cfg.Import.ApplyValues),
		),
		publishers: pubs,
	}, nil
}

func connectPublishers(pc *config.PublishConfig, sc *config.ServeConfig) ([]publish.Publisher, error) {
	if pc == nil {
		return nil, nil
	}

	var pubs []publish.Publisher
	if pc.Redis != nil {
		store, err := publish.NewRedisStore(publish.RedisOptions{
			URL:    pc.Redis.URL,
			Prefix: pc.Redis.GetPrefix(),
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, store)
	}
	if pc.Etcd != nil {
		endpoint := ""
		if sc != nil && sc.Port > 0 {
			endpoint = fmt.Sprintf(":%d", sc.Port)
		}
		ann, err := publish.NewEtcdAnnouncer(publish.EtcdOptions{
			Endpoints: pc.Etcd.Endpoints,
			Namespace: pc.Etcd.GetNamespace(),
			TTL:       pc.Etcd.GetTTL(),
			TLS:       pc.Etcd.TLS,
			Endpoint:  endpoint,
		})
		if err != nil {
			return nil, errors.Join(err, publish.CloseAll(pubs))
		}
		pubs = append(pubs, ann)
	}
	return pubs, nil
}

// Config returns the effective configuration.
func (l *Library) Config() *config.Config { return l.cfg }

// Registry returns the catalog registry.
func (l *Library) Registry() *catalog.Registry { return l.registry }

// Catalog returns the active catalog.
func (l *Library) Catalog() *catalog.Catalog { return l.registry.Current() }

// Load rebuilds the catalog from the configured libraries. An error means
// the library paths could not be resolved; problems inside the files are
// reported in the returned report instead.
func (l *Library) Load(ctx context.Context) (*catalog.Report, error) {
	const op = "Library.Load"

	if err := l.checkOpen(op); err != nil {
		return nil, err
	}
	if len(l.cfg.Libraries) == 0 {
		return nil, newConfigurationError(op, fmt.Errorf("%w: no libraries configured", ErrInvalidConfig))
	}
	sources, err := mtlx.ExpandPaths(l.cfg.Libraries...)
	if err != nil {
		return nil, newConfigurationError(op, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return l.LoadSources(ctx, sources...)
}

// LoadSources rebuilds the catalog from explicit sources.
func (l *Library) LoadSources(ctx context.Context, sources ...mtlx.Source) (*catalog.Report, error) {
	if err := l.checkOpen("Library.LoadSources"); err != nil {
		return nil, err
	}
	rep := l.registry.Rebuild(ctx, sources...)
	l.logger.InfoContext(ctx, "catalog loaded",
		"revision", rep.Catalog.Revision(),
		"sources", rep.Sources,
		"types", rep.Catalog.Len(),
		"skipped", rep.Skipped,
		"diagnostics", len(rep.Diagnostics),
		"duration", rep.Duration,
	)
	return rep, nil
}

// Register adds or replaces a single node type built from def.
func (l *Library) Register(ctx context.Context, def *mtlx.NodeDef) (*nodetype.NodeType, []error, error) {
	if err := l.checkOpen("Library.Register"); err != nil {
		return nil, nil, err
	}
	nt, diags := l.registry.Register(ctx, def)
	return nt, diags, nil
}

// NodeType returns a node type of the active catalog by identifier or by
// bare category.
func (l *Library) NodeType(id string) (*nodetype.NodeType, error) {
	c := l.Catalog()
	if nt, ok := c.Get(id); ok {
		return nt, nil
	}
	if nt, ok := c.Lookup(id); ok {
		return nt, nil
	}
	return nil, newNotFoundError("Library.NodeType", ErrNodeTypeNotFound).
		WithContext(map[string]any{"id": id, "revision": c.Revision()})
}

// NewTree returns an empty tree creating nodes from this library's
// active catalog.
func (l *Library) NewTree() *graph.Tree {
	return graph.NewTree(l.registry)
}

// Import adds the nodes of doc to tree.
func (l *Library) Import(ctx context.Context, doc *mtlx.Document, tree *graph.Tree) (*graph.Result, error) {
	if err := l.checkOpen("Library.Import"); err != nil {
		return nil, err
	}
	return l.importer.Import(ctx, doc, tree)
}

// ImportFile reads a graph document into a new tree.
func (l *Library) ImportFile(ctx context.Context, path string) (*graph.Tree, *graph.Result, error) {
	if err := l.checkOpen("Library.ImportFile"); err != nil {
		return nil, nil, err
	}
	tree := l.NewTree()
	res, err := l.importer.ImportFile(ctx, path, tree)
	if err != nil {
		return nil, nil, err
	}
	return tree, res, nil
}

// Health combines the library path and catalog checks with a reachability
// check of every configured publish backend. An unreachable backend only
// degrades the result: the catalog is still served.
func (l *Library) Health(ctx context.Context) health.Status {
	checks := []health.Status{
		health.LibraryCheck(l.cfg.Libraries...),
		health.CatalogCheck(l.Catalog()),
	}
	if pc := l.cfg.Publish; pc != nil {
		if pc.Redis != nil {
			checks = append(checks, health.Optional(health.RedisCheck(ctx, pc.Redis.URL)))
		}
		if pc.Etcd != nil {
			checks = append(checks, health.Optional(health.EtcdCheck(ctx, pc.Etcd.Endpoints...)))
		}
	}
	return health.Combine(checks...)
}

// Serve exposes the catalog over gRPC until ctx is canceled. The serve
// section of the configuration is applied before opts.
func (l *Library) Serve(ctx context.Context, opts ...serve.Option) error {
	const op = "Library.Serve"

	if err := l.checkOpen(op); err != nil {
		return err
	}
	all := append(serve.FromConfig(l.cfg.Serve), serve.WithLogger(l.logger))
	all = append(all, opts...)

	srv, err := serve.NewServer(l.registry, all...)
	if err != nil {
		return newConfigurationError(op, err)
	}
	defer l.registry.AddObserver(srv.Observe)()
	srv.Observe(ctx, l.Catalog())
	return srv.Serve(ctx)
}

// Close closes every publisher. Later calls return nil.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return publish.CloseAll(l.publishers)
}

func (l *Library) checkOpen(op string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &Error{Op: op, Kind: KindValidation, Err: ErrClosed}
	}
	return nil
}
