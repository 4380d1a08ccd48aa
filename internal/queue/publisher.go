package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends events to RabbitMQ.  Each publish dials a fresh
// connection, so a broker outage never leaves a stale channel behind.
// Errors are logged and returned; callers decide whether to ignore them.
type Publisher struct {
	url string
	log *logrus.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// ApplicationSubmitted publishes ev to QueueApplicationSubmitted.
func (p *Publisher) ApplicationSubmitted(ctx context.Context, ev ApplicationSubmittedEvent) error {
	return p.publish(ctx, QueueApplicationSubmitted, ev)
}

// StatusChanged publishes ev to QueueStatusChanged.
func (p *Publisher) StatusChanged(ctx context.Context, ev StatusChangedEvent) error {
	return p.publish(ctx, QueueStatusChanged, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	entry := p.log.WithField("queue", queue)

	body, err := json.Marshal(event)
	if err != nil {
		entry.WithError(err).Error("rabbitmq: marshal event failed")
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, queue); err != nil {
		entry.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		entry.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// declare makes sure queue exists and is durable.
func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}
