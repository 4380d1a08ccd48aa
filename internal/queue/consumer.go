package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/metrics"
)

// Mailer delivers the emails triggered by portal events.
type Mailer interface {
	SendApprovalRequest(ctx context.Context, ev ApplicationSubmittedEvent) error
	SendStatusUpdate(ctx context.Context, ev StatusChangedEvent) error
}

// Consumer drains both portal queues and hands each event to a Mailer.
type Consumer struct {
	url    string
	mailer Mailer
	log    *logrus.Logger
}

// NewConsumer returns a Consumer for the broker at url.
func NewConsumer(url string, mailer Mailer, log *logrus.Logger) *Consumer {
	return &Consumer{url: url, mailer: mailer, log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  Messages that fail are rejected without requeue so a bad
// payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).WithField("retry_in", backoff.String()).Warn("consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consumer: loop ended, reconnecting")
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.log.WithError(err).Warn("consumer: set QoS failed")
	}

	submitted, err := c.subscribe(ch, QueueApplicationSubmitted)
	if err != nil {
		return err
	}
	changed, err := c.subscribe(ch, QueueStatusChanged)
	if err != nil {
		return err
	}

	for {
		var (
			d  amqp.Delivery
			ok bool
			q  string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-submitted:
			q = QueueApplicationSubmitted
		case d, ok = <-changed:
			q = QueueStatusChanged
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(ctx, q, d.Body); err != nil {
			c.log.WithError(err).WithField("queue", q).Error("consumer: handle message failed")
			metrics.RecordConsumed(q, false)
			_ = d.Nack(false, false)
			continue
		}
		metrics.RecordConsumed(q, true)
		_ = d.Ack(false)
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if err := declare(ch, queue); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

// Handle decodes body according to queue and dispatches it to the mailer.
func (c *Consumer) Handle(ctx context.Context, queue string, body []byte) error {
	switch queue {
	case QueueApplicationSubmitted:
		var ev ApplicationSubmittedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.ApplicationID == "" || ev.CentreAdminEmail == "" {
			return errors.New("submitted event missing application or recipient")
		}
		if err := c.mailer.SendApprovalRequest(ctx, ev); err != nil {
			metrics.RecordNotificationFailure("approval_request")
			return err
		}
		c.log.WithFields(logrus.Fields{"application_id": ev.ApplicationID, "to": ev.CentreAdminEmail}).
			Info("approval request emailed")
	case QueueStatusChanged:
		var ev StatusChangedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.ApplicationID == "" || ev.Email == "" {
			return errors.New("status event missing application or recipient")
		}
		if err := c.mailer.SendStatusUpdate(ctx, ev); err != nil {
			metrics.RecordNotificationFailure("status_update")
			return err
		}
		c.log.WithFields(logrus.Fields{"application_id": ev.ApplicationID, "status": ev.Status}).
			Info("status update emailed")
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	return nil
}
