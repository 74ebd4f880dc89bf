package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/mailer"
)

// WelcomeConsumer sends the welcome mail for every signup event.
type WelcomeConsumer struct {
	url    string
	sender mailer.Sender
	log    *zap.Logger
}

// NewWelcomeConsumer returns a consumer for the broker at url.
func NewWelcomeConsumer(url string, sender mailer.Sender, log *zap.Logger) *WelcomeConsumer {
	return &WelcomeConsumer{url: url, sender: sender, log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It only returns ctx's error.
func (c *WelcomeConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("welcome consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
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
		c.log.Warn("welcome consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *WelcomeConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn("welcome consumer: set QoS failed", zap.Error(err))
	}
	if _, err := declare(ch, SignedUpQueue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, SignedUpQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for d := range msgs {
		if err := c.handle(ctx, d.Body); err != nil {
			c.log.Error("welcome consumer: handle failed", zap.Error(err))
			// Reject without requeue to avoid a hot loop on a poison message.
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *WelcomeConsumer) handle(ctx context.Context, body []byte) error {
	var ev UserSignedUpEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" {
		return errors.New("event has no email")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return c.sender.Send(ctx, mailer.Welcome(ev.Email, ev.Name))
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
