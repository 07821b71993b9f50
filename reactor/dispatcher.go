package reactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// Handler reacts to one event.
type Handler func(ctx context.Context, e *Event) error

// Filter selects the events a handler sees.
type Filter func(e *Event) bool

type route struct {
	name    string
	handler Handler
	filters []Filter
}

func (r route) matches(e *Event) bool {
	for _, f := range r.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Dispatcher routes events to handlers by kind. Each handler runs at most
// once per event: a marker written after it succeeds makes redeliveries
// skip it, so a partially failed event retries only what failed.
type Dispatcher struct {
	routes    map[schema.Kind][]route
	processed *repo.ProcessedRepo
	logger    *zap.Logger
	metrics   *metrics.Emitter
	now       func() time.Time
	ttl       time.Duration
}

// Options configures a Dispatcher.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Emitter
	Now     func() time.Time
	// MarkerTTL is how long handled-event markers are kept.
	MarkerTTL time.Duration
}

// NewDispatcher returns a dispatcher recording handled events in processed.
func NewDispatcher(processed *repo.ProcessedRepo, opts Options) *Dispatcher {
	d := &Dispatcher{
		routes:    make(map[schema.Kind][]route),
		processed: processed,
		logger:    logging.OrNop(opts.Logger),
		metrics:   opts.Metrics,
		now:       opts.Now,
		ttl:       opts.MarkerTTL,
	}
	if d.metrics == nil {
		d.metrics = metrics.Nop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.ttl <= 0 {
		d.ttl = 24 * time.Hour
	}
	return d
}

// On registers h under name for events on kind that pass every filter.
// Handlers of a kind run in registration order.
func (d *Dispatcher) On(kind schema.Kind, name string, h Handler, filters ...Filter) {
	d.routes[kind] = append(d.routes[kind], route{name: name, handler: h, filters: filters})
}

// Handles reports whether any handler is registered for kind.
func (d *Dispatcher) Handles(kind schema.Kind) bool {
	return len(d.routes[kind]) > 0
}

// Dispatch runs the handlers matching a change. Counter underflows and
// vanished rows are logged and treated as handled: they mean the state the
// handler would fix up is already gone. Any other failure stops the event
// and is returned for redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, c store.Change) error {
	e, err := newEvent(c)
	if err != nil {
		d.logger.Warn("skipping change of unknown key", zap.String("pk", c.Key.PK), zap.String("sk", c.Key.SK))
		d.metrics.Count(metrics.EventsSkipped, 1)
		return nil
	}
	routes := d.routes[e.Ref.Kind]
	if len(routes) == 0 {
		return nil
	}
	for _, r := range routes {
		if !r.matches(e) {
			continue
		}
		if err := d.run(ctx, r, e); err != nil {
			return err
		}
	}
	d.metrics.Count(metrics.EventsProcessed, 1, metrics.Dim("kind", string(e.Ref.Kind)))
	return nil
}

func (d *Dispatcher) run(ctx context.Context, r route, e *Event) error {
	marker := e.ID + ":" + r.name
	seen, err := d.processed.Seen(ctx, marker, d.now())
	if err != nil {
		return fmt.Errorf("check marker %s: %w", marker, err)
	}
	if seen {
		return nil
	}

	dim := metrics.Dim("handler", r.name)
	start := time.Now()
	err = r.handler(ctx, e)
	d.metrics.Count(metrics.HandlerInvocations, 1, dim)
	d.metrics.Latency(metrics.HandlerLatency, time.Since(start), dim)

	switch {
	case err == nil:
	case errors.Is(err, store.ErrCounterUnderflow), errors.Is(err, store.ErrNotFound):
		d.logger.Warn("handler soft failure",
			zap.String("handler", r.name),
			zap.String("kind", string(e.Ref.Kind)),
			zap.String("pk", e.Key.PK),
			zap.String("sk", e.Key.SK),
			zap.Error(err),
		)
	default:
		d.metrics.Count(metrics.HandlerFailures, 1, dim)
		d.logger.Error("handler failed",
			zap.String("handler", r.name),
			zap.String("kind", string(e.Ref.Kind)),
			zap.String("pk", e.Key.PK),
			zap.String("sk", e.Key.SK),
			zap.Error(err),
		)
		return fmt.Errorf("%s on %s: %w", r.name, e.Key, err)
	}
	now := d.now()
	marked, err := d.processed.Mark(ctx, marker, now, now.Add(d.ttl))
	if err != nil {
		return fmt.Errorf("mark %s: %w", marker, err)
	}
	if !marked {
		d.logger.Debug("event handled twice", zap.String("handler", r.name), zap.String("event", e.ID))
	}
	return nil
}
