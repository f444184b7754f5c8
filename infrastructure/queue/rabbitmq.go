package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// amqpChannel is the subset of *amqp.Channel used for publishing
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpSender publishes persistent messages to durable queues on the default
// exchange. Channels are not safe for concurrent use, so sends are
// serialised.
type amqpSender struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	declared map[string]bool
}

// NewRabbitMQPublisher opens its own connection, separate from the consumer
// runtime's
func NewRabbitMQPublisher(cfg *config.RabbitMQConfig, obs ports.Observability) (*Publisher, error) {
	logger, metrics, err := obs.ComponentsScoped("queue.rabbitmq")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Info("RabbitMQ publisher ready")

	s := newAMQPSender(channel)
	s.conn = conn
	return newPublisher("rabbitmq", s, logger, metrics), nil
}

func newAMQPSender(channel amqpChannel) *amqpSender {
	return &amqpSender{channel: channel, declared: make(map[string]bool)}
}

func (s *amqpSender) send(ctx context.Context, target, msgType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.declared[target] {
		if _, err := s.channel.QueueDeclare(target, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", target, err)
		}
		s.declared[target] = true
	}

	err := s.channel.PublishWithContext(ctx, "", target, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         msgType,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", target, err)
	}
	return nil
}

func (s *amqpSender) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
