package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
)

// Publisher sends events to durable queues on the default exchange. Each
// publish opens its own connection; event volume is one message per booking.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	return p.publish(ctx, BookingConfirmedQueue, ev)
}

func (p *Publisher) PublishRefundRequested(ctx context.Context, ev RefundRequestedEvent) error {
	return p.publish(ctx, RefundRequestedQueue, ev)
}

func (p *Publisher) PublishPasswordResetRequested(ctx context.Context, ev PasswordResetRequestedEvent) error {
	return p.publish(ctx, PasswordResetQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	log := p.log.With(slog.String("op", "queue.Publisher.publish"), slog.String("queue", queue))

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Error("dial failed", sl.Err(err))
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("channel open failed", sl.Err(err))
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Error("queue declare failed", sl.Err(err))
		return fmt.Errorf("declare queue: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Error("publish failed", sl.Err(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// NopPublisher drops every event. It is used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) error { return nil }

func (NopPublisher) PublishRefundRequested(context.Context, RefundRequestedEvent) error { return nil }

func (NopPublisher) PublishPasswordResetRequested(context.Context, PasswordResetRequestedEvent) error {
	return nil
}
