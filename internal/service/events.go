package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/GustheTrader/Build-flow/internal/adapter/otel"
	"github.com/GustheTrader/Build-flow/internal/port/broadcast"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
	"github.com/GustheTrader/Build-flow/internal/resilience"
)

// EventPublisher fans domain events out to the message queue and the live
// dashboard feed. Publishing is best-effort: failures are logged and counted,
// never returned. A nil *EventPublisher discards everything.
type EventPublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	hub     broadcast.Broadcaster
	metrics *cfotel.Metrics
}

// NewEventPublisher creates a publisher. queue and hub may each be nil. When
// a queue is present the hub is fed by ForwardToBroadcaster instead of
// directly, so every replica sees every event.
func NewEventPublisher(queue messagequeue.Queue, breaker *resilience.Breaker, hub broadcast.Broadcaster) *EventPublisher {
	return &EventPublisher{queue: queue, breaker: breaker, hub: hub}
}

// SetMetrics enables dropped-event counting.
func (p *EventPublisher) SetMetrics(m *cfotel.Metrics) {
	p.metrics = m
}

// Publish sends payload on subject.
func (p *EventPublisher) Publish(ctx context.Context, subject string, payload any) {
	if p == nil {
		return
	}
	if p.queue == nil {
		if p.hub != nil {
			p.hub.BroadcastEvent(ctx, subject, payload)
		}
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "event encode failed", "subject", subject, "error", err)
		p.dropped(ctx, subject)
		return
	}
	publish := func(ctx context.Context) error { return p.queue.Publish(ctx, subject, data) }
	if p.breaker != nil {
		err = p.breaker.Execute(ctx, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
		p.dropped(ctx, subject)
	}
}

func (p *EventPublisher) dropped(ctx context.Context, subject string) {
	if p.metrics != nil {
		p.metrics.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("subject", subject)))
	}
}

// ForwardToBroadcaster relays queue messages on each subject to hub. The
// returned function cancels every subscription.
func ForwardToBroadcaster(ctx context.Context, q messagequeue.Queue, hub broadcast.Broadcaster, subjects ...string) (func(), error) {
	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, subject := range subjects {
		cancel, err := q.Subscribe(ctx, subject, func(ctx context.Context, subj string, data []byte) error {
			hub.BroadcastEvent(ctx, subj, json.RawMessage(data))
			return nil
		})
		if err != nil {
			cancelAll()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return cancelAll, nil
}
