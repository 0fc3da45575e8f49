package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
)

// Consumer drains the event queues into append-only files under Dir.
// Confirmations go to booking.log and refund requests to refunds.log.
// Password reset mails are spooled to resets.outbox.
type Consumer struct {
	URL string
	Dir string
	Log *slog.Logger
}

// Run keeps consuming until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log.With(slog.String("op", "queue.Consumer.Run"))

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("dial failed, retrying", sl.Err(err), slog.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", sl.Err(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("set QoS failed", sl.Err(err))
	}

	handlers := map[string]func([]byte) error{
		BookingConfirmedQueue: c.HandleBookingConfirmed,
		RefundRequestedQueue:  c.HandleRefundRequested,
		PasswordResetQueue:    c.HandlePasswordResetRequested,
	}
	type delivery struct {
		queue string
		msg   amqp.Delivery
	}
	merged := make(chan delivery)
	done := make(chan struct{})
	defer close(done)

	for queue := range handlers {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", queue, err)
		}
		go func(queue string, msgs <-chan amqp.Delivery) {
			for m := range msgs {
				select {
				case merged <- delivery{queue: queue, msg: m}:
				case <-done:
					return
				}
			}
			select {
			case merged <- delivery{queue: queue}:
			case <-done:
			}
		}(queue, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-merged:
			if d.msg.Acknowledger == nil {
				return errors.New("deliveries channel closed: " + d.queue)
			}
			if err := handlers[d.queue](d.msg.Body); err != nil {
				c.Log.Error("handle message failed", slog.String("queue", d.queue), sl.Err(err))
				_ = d.msg.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.msg.Ack(false)
		}
	}
}

func (c *Consumer) HandleBookingConfirmed(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | user_id=%s | user=\"%s %s\" | beach=\"%s\" | place=%s%d | date=%s | chairs=%d | price=%d EUR | payment=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.UserName, ev.UserSurname, ev.BeachName, ev.Row, ev.Index, ev.Date, ev.Chairs, ev.Price, ev.PaymentRef)
	return c.appendLine("booking.log", line, 0o644)
}

func (c *Consumer) HandleRefundRequested(body []byte) error {
	var ev RefundRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Refund requested | refund_id=%s | provider=%s | payment=%s | user_id=%s | amount=%d cents | reason=\"%s\"\n",
		ev.RequestedAt, ev.RefundID, ev.Provider, ev.ExternalID, ev.UserID, ev.AmountMinor, ev.Reason)
	return c.appendLine("refunds.log", line, 0o644)
}

// HandlePasswordResetRequested spools the reset mail into resets.outbox,
// readable by the owner only. A mailer picks it up from there.
func (c *Consumer) HandlePasswordResetRequested(body []byte) error {
	var ev PasswordResetRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.Token == "" {
		return errors.New("password reset event without email or token")
	}
	line := fmt.Sprintf("[%s] Password reset | to=%s | user_id=%s | token=%s | expires=%s\n",
		ev.RequestedAt, ev.Email, ev.UserID, ev.Token, ev.ExpiresAt)
	return c.appendLine("resets.outbox", line, 0o600)
}

func (c *Consumer) appendLine(name, line string, perm os.FileMode) error {
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
