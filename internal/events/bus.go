package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is re-exported so consumers of the bus do not import the AMQP
// client directly.
type Delivery = amqp.Delivery

// BusPublisher publishes entries to a RabbitMQ topic exchange, routing by
// detail type.
type BusPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewBusPublisher(url, exchange string) (*BusPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &BusPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *BusPublisher) Publish(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(e.DetailType), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   e.ID,
		Type:        e.DetailType,
		Timestamp:   e.Time,
		Body:        body,
	})
}

func (p *BusPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// BusConsumer binds a durable queue to the topic exchange for a set of
// routing keys and hands deliveries to the caller.
type BusConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewBusConsumer(url, exchange, queue string, keys []string) (*BusConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return &BusConsumer{conn: conn, ch: ch, queue: q.Name}, nil
}

func (c *BusConsumer) Deliveries(ctx context.Context) (<-chan Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *BusConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
