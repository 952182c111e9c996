package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Publisher = (*RabbitMQClient)(nil)

// RabbitMQClient publishes persistent JSON messages to durable queues on the
// default exchange.
type RabbitMQClient struct {
	conn *amqp.Connection
	// amqp channels are not safe for concurrent publishing
	mu  sync.Mutex
	chn *amqp.Channel
}

// NewRabbitMQClient dials the broker and declares the given queues.
func NewRabbitMQClient(url string, queues ...string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	c := &RabbitMQClient{conn: conn, chn: chn}
	for _, q := range queues {
		if err := c.CreateQueue(q); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *RabbitMQClient) CreateQueue(name string) error {
	_, err := c.chn.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (c *RabbitMQClient) Publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chn.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (c *RabbitMQClient) Close() error {
	if err := c.chn.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
