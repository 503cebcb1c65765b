// Package queue forwards dashboard events to a durable RabbitMQ queue.
// Delivery is best effort and never blocks the dashboard.
package queue

import (
	"context"
	"time"

	"hostdesk/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker and returns a func that closes the connection.
type Dialer func(url string) (Channel, func() error, error)

// DialAMQP dials url with amqp091.
func DialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

type Publisher struct {
	url    string
	queue  string
	dial   Dialer
	buf    chan events.Event
	logger *zerolog.Logger
}

// NewPublisher creates a publisher for queue on the broker at url.
// A nil dial uses DialAMQP.
func NewPublisher(url, queue string, dial Dialer, logger *zerolog.Logger) *Publisher {
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{
		url:    url,
		queue:  queue,
		dial:   dial,
		buf:    make(chan events.Event, 64),
		logger: logger,
	}
}

// Forward queues every bus event for publishing. Events are dropped when the
// buffer is full.
func (p *Publisher) Forward(bus *events.Bus) {
	bus.SubscribeAll(func(ev events.Event) error {
		select {
		case p.buf <- ev:
		default:
			p.logger.Warn().Str("event", ev.Type).Msg("rabbitmq: buffer full, event dropped")
		}
		return nil
	})
}

// Run publishes queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.buf:
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := p.Publish(pubCtx, ev); err != nil {
				p.logger.Error().Err(err).Str("event", ev.Type).Msg("rabbitmq: publish failed")
			}
			cancel()
		}
	}
}

// Publish sends one event as a persistent message. The queue is declared
// durable on every call.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = closeConn() }()
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.CreatedAt.UTC(),
		Body:         ev.Payload,
	}
	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	)
}
