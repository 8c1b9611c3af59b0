// Package publish distributes catalog snapshots to out-of-process hosts.
//
// A RedisStore keeps the full node-type records of the latest catalog and
// notifies subscribers of every update. An EtcdAnnouncer advertises which
// revision a process serves, with a lease so that crashed processes drop
// out. Both implement Publisher and are driven by a catalog.Registry
// through Observer.
package publish

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/mxgraph/catalog"
)

// ErrNotFound is returned when a published node type does not exist.
var ErrNotFound = errors.New("node type not published")

// Publisher receives every catalog the registry swaps in.
type Publisher interface {
	// Name identifies the publisher in logs and spans.
	Name() string
	Publish(ctx context.Context, snap *catalog.Snapshot) error
	Close() error
}

// ObserverOption configures Observer.
type ObserverOption func(*observer)

// WithLogger sets the logger publish failures are reported to.
func WithLogger(logger *slog.Logger) ObserverOption {
	return func(o *observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer for publish spans.
func WithTracer(tracer trace.Tracer) ObserverOption {
	return func(o *observer) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

type observer struct {
	pubs   []Publisher
	logger *slog.Logger
	tracer trace.Tracer
}

// Observer returns a catalog.Observer that snapshots each new catalog and
// hands it to every publisher in turn. A failing publisher is logged and
// does not stop the others; the catalog swap itself is never affected.
func Observer(pubs []Publisher, opts ...ObserverOption) catalog.Observer {
	o := &observer{
		pubs:   pubs,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("mxgraph/publish"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "publish")
	return o.observe
}

func (o *observer) observe(ctx context.Context, c *catalog.Catalog) {
	if len(o.pubs) == 0 {
		return
	}
	snap, err := catalog.NewSnapshot(c)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to snapshot catalog", "revision", c.Revision(), "error", err)
		return
	}
	for _, p := range o.pubs {
		o.publish(ctx, p, snap)
	}
}

func (o *observer) publish(ctx context.Context, p Publisher, snap *catalog.Snapshot) {
	ctx, span := o.tracer.Start(ctx, "publish."+p.Name(), trace.WithAttributes(
		attribute.Int64("revision", int64(snap.Revision)),
		attribute.String("digest", snap.Digest),
		attribute.Int("types", len(snap.Types)),
	))
	defer span.End()

	if err := p.Publish(ctx, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.ErrorContext(ctx, "failed to publish catalog",
			"publisher", p.Name(), "revision", snap.Revision, "error", err)
		return
	}
	o.logger.DebugContext(ctx, "published catalog",
		"publisher", p.Name(), "revision", snap.Revision, "types", len(snap.Types))
}

// CloseAll closes every publisher and joins their errors.
func CloseAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
