package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	EventsExchange  = "tryon.events"
	DLXExchange     = "tryon.dlx"
	ImageQueue      = "tryon.image_process"
	DeadLetterQueue = "tryon.dead_letter"
)

// AMQPBus publishes and consumes image/process events over RabbitMQ.
type AMQPBus struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger zerolog.Logger

	pubMu sync.Mutex
}

// DialAMQP connects and declares the topology.
func DialAMQP(url string, logger zerolog.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	bus := &AMQPBus{conn: conn, ch: ch, logger: logger}
	if err := bus.setupTopology(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	return bus, nil
}

// setupTopology is idempotent. Rejected deliveries land in the dead letter queue.
func (b *AMQPBus) setupTopology() error {
	if err := b.ch.ExchangeDeclare(EventsExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := b.ch.ExchangeDeclare(DLXExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := b.ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := b.ch.QueueBind(DeadLetterQueue, "", DLXExchange, false, nil); err != nil {
		return err
	}
	if _, err := b.ch.QueueDeclare(ImageQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DLXExchange,
	}); err != nil {
		return err
	}
	return b.ch.QueueBind(ImageQueue, ImageProcessName, EventsExchange, false, nil)
}

func (b *AMQPBus) Dispatch(ctx context.Context, ev ImageProcess) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	return b.ch.PublishWithContext(ctx,
		EventsExchange,
		ImageProcessName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.JobID,
			Body:         body,
		})
}

// Consume delivers events to handler until ctx is cancelled or the channel
// closes, running at most concurrency handlers at once. It waits for
// in-flight handlers before returning.
func (b *AMQPBus) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := b.ch.Qos(concurrency, 0, false); err != nil {
		return err
	}
	deliveries, err := b.ch.Consume(
		ImageQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return dispatchDeliveries(ctx, deliveries, concurrency, handler, b.logger)
}

// dispatchDeliveries runs handler for each delivery with at most concurrency
// in flight. A delivery received while waiting for a free slot after ctx is
// cancelled is requeued.
func dispatchDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, concurrency int, handler Handler, logger zerolog.Logger) error {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp: delivery channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					logger.Error().Err(err).Msg("requeue on shutdown failed")
				}
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				handleDelivery(context.WithoutCancel(ctx), d, handler, logger)
			}(d)
		}
	}
}

// handleDelivery acks on success. Undecodable messages and handler errors are
// rejected without requeue so they dead-letter.
func handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler, logger zerolog.Logger) {
	ev, err := Decode(d.Body)
	if err != nil {
		logger.Error().Err(err).Str("message_id", d.MessageId).Msg("dropping malformed event")
		if nerr := d.Nack(false, false); nerr != nil {
			logger.Error().Err(nerr).Msg("nack failed")
		}
		return
	}
	if err := handler(ctx, ev); err != nil {
		logger.Error().Err(err).Str("job_id", ev.JobID).Msg("event handler failed")
		if nerr := d.Nack(false, false); nerr != nil {
			logger.Error().Err(nerr).Msg("nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		logger.Error().Err(err).Str("job_id", ev.JobID).Msg("ack failed")
	}
}

// Ping reports whether the broker connection is still open.
func (b *AMQPBus) Ping(ctx context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return errors.New("amqp: connection closed")
	}
	return ctx.Err()
}

func (b *AMQPBus) Close() {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
