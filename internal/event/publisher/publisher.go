package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apihub/internal/event/models"
	"apihub/pkg/requestcontext"
)

// Store is the append-only event log.
type Store interface {
	Append(ctx context.Context, event models.Event) (models.Event, error)
	ListByEntity(ctx context.Context, entityID string) ([]models.Event, error)
	ListByEntityType(ctx context.Context, entityType models.EntityType) ([]models.Event, error)
}

// Sink receives a copy of every stored event. Sinks are best effort: their
// failures are logged and never fail the operation that produced the event.
type Sink interface {
	Send(ctx context.Context, event models.Event) error
}

// Publisher records events inline, in the order given, before the calling
// operation reports success.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithSink adds a fan-out destination.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithPublisherLogger sets a logger for sink error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends each event and stops at the first store failure. Events
// without a timestamp take the request time.
func (p *Publisher) Emit(ctx context.Context, events ...models.Event) error {
	for _, e := range events {
		if e.Timestamp.IsZero() {
			e.Timestamp = requestcontext.Now(ctx)
		}
		if e.Timestamp.Location() != time.UTC {
			e.Timestamp = e.Timestamp.UTC()
		}
		stored, err := p.store.Append(ctx, e)
		if err != nil {
			return fmt.Errorf("append %s event for %s: %w", e.EventType, e.EntityID, err)
		}
		p.fanOut(ctx, stored)
	}
	return nil
}

func (p *Publisher) fanOut(ctx context.Context, e models.Event) {
	for _, sink := range p.sinks {
		if err := sink.Send(ctx, e); err != nil {
			p.logger.WarnContext(ctx, "event sink failed",
				"event_id", e.ID.String(),
				"event_type", string(e.EventType),
				"entity_id", e.EntityID,
				"error", err,
			)
		}
	}
}

func (p *Publisher) ListByEntity(ctx context.Context, entityID string) ([]models.Event, error) {
	return p.store.ListByEntity(ctx, entityID)
}

func (p *Publisher) ListByEntityType(ctx context.Context, entityType models.EntityType) ([]models.Event, error) {
	return p.store.ListByEntityType(ctx, entityType)
}
