package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("events")

// Publisher sends events to every server instance.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Subscriber delivers events to handle until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(context.Context, Event)) error
}

// RedisBus publishes and subscribes on EventsChannel.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus creates a RedisBus on rdb.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

// Publish encodes and publishes one event.
func (b *RedisBus) Publish(ctx context.Context, eventType string, payload any) error {
	ctx, span := tracer.Start(ctx, "events.Publish", trace.WithAttributes(
		attribute.String("event.type", eventType),
	))
	defer span.End()

	data, err := Encode(eventType, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to encode event")
		return err
	}
	if err := b.rdb.Publish(ctx, EventsChannel, data).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish event")
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Subscribe blocks, calling handle for each well-formed event, until ctx is done.
// Malformed messages are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, handle func(context.Context, Event)) error {
	pubsub := b.rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so no event published afterwards is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", EventsChannel, err)
	}
	slog.InfoContext(ctx, "Event subscriber started", "channel", EventsChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			eventCtx, eventSpan := tracer.Start(ctx, "events.handle", trace.WithAttributes(
				attribute.String("event.channel", msg.Channel),
			))
			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				slog.ErrorContext(eventCtx, "Could not decode event", "error", err)
				eventSpan.RecordError(err)
				eventSpan.SetStatus(codes.Error, "Could not decode event")
				eventSpan.End()
				continue
			}
			eventSpan.SetAttributes(attribute.String("event.type", event.Type))
			handle(eventCtx, event)
			eventSpan.End()
		}
	}
}
