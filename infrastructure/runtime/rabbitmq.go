package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const rabbitmqConsumerTag = "media-offload"

// rabbitmqRuntime consumes one delivery at a time with manual acks
type rabbitmqRuntime struct {
	handler ports.Handler
	logger  ports.Logger
	metrics ports.Metrics
	config  *config.RabbitMQConfig

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	done    chan struct{}
}

func NewRabbitMQRuntime(cfg *config.RabbitMQConfig, handler ports.Handler, obs ports.Observability) (ports.Runtime, error) {
	if handler == nil {
		return nil, errors.New("failed to create runtime: handler is required")
	}

	logger, metrics, err := obs.ComponentsScoped("runtime.rabbitmq")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	return &rabbitmqRuntime{
		handler: handler,
		logger:  logger,
		metrics: metrics,
		config:  cfg,
		done:    make(chan struct{}),
	}, nil
}

// Start consumes until the channel is cancelled or the connection drops
func (rt *rabbitmqRuntime) Start() error {
	defer close(rt.done)

	msgs, err := rt.connect()
	if err != nil {
		return err
	}

	rt.logger.Info("RabbitMQ consumer started",
		"queue", rt.config.Queue,
		"prefetch", rt.config.PrefetchCount)
	rt.metrics.IncrementCounter("rabbitmq.starts", nil)

	for msg := range msgs {
		rt.processDelivery(msg)
	}

	rt.logger.Info("RabbitMQ delivery channel closed")
	return nil
}

func (rt *rabbitmqRuntime) connect() (<-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(rt.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	cleanup := func() {
		ch.Close()
		conn.Close()
	}

	if err := ch.Qos(rt.config.PrefetchCount, 0, false); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := ch.QueueDeclare(
		rt.config.Queue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,              // queue
		rabbitmqConsumerTag, // consumer tag
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	rt.mu.Lock()
	rt.conn, rt.channel = conn, ch
	rt.mu.Unlock()

	return msgs, nil
}

// processDelivery acks handled messages. Rejected requests are dropped,
// handler errors are requeued once.
func (rt *rabbitmqRuntime) processDelivery(msg amqp.Delivery) {
	start := time.Now()
	defer func() {
		rt.metrics.RecordHistogram("rabbitmq.duration", time.Since(start).Seconds(), nil)
	}()
	rt.metrics.IncrementCounter("rabbitmq.messages", nil)

	msgType := msg.Type
	if t, ok := msg.Headers["type"].(string); ok && t != "" {
		msgType = t
	}

	req, err := decodeMessage(msg.MessageId, "rabbitmq", msgType, msg.Body)
	if err != nil {
		rt.logger.Error("Invalid RabbitMQ message", "delivery_tag", msg.DeliveryTag, "error", err)
		rt.metrics.IncrementCounter("rabbitmq.invalid", nil)
		rt.settle(msg, req.ID, false, false)
		return
	}
	if !msg.Timestamp.IsZero() {
		req.Timestamp = msg.Timestamp
	}
	if msg.RoutingKey != "" {
		req.Metadata["routing_key"] = msg.RoutingKey
	}
	if msg.CorrelationId != "" {
		req.Metadata["correlation_id"] = msg.CorrelationId
	}

	ctx := context.Background()
	if rt.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.config.Timeout)
		defer cancel()
	}

	resp, err := rt.handler.Handle(ctx, req)
	switch {
	case err != nil:
		requeue := !msg.Redelivered
		rt.logger.Error("Message processing failed", "request_id", req.ID, "error", err, "requeued", requeue)
		rt.metrics.IncrementCounter("rabbitmq.failure", nil)
		rt.settle(msg, req.ID, false, requeue)
	case !resp.Success:
		rt.logger.Warn("Message rejected", "request_id", req.ID, "error", resp.Error)
		rt.metrics.IncrementCounter("rabbitmq.rejected", nil)
		rt.settle(msg, req.ID, false, false)
	default:
		rt.metrics.IncrementCounter("rabbitmq.success", nil)
		rt.settle(msg, req.ID, true, false)
	}
}

func (rt *rabbitmqRuntime) settle(msg amqp.Delivery, id string, ack, requeue bool) {
	var err error
	if ack {
		err = msg.Ack(false)
	} else {
		err = msg.Nack(false, requeue)
	}
	if err != nil {
		rt.logger.Error("Failed to settle message", "request_id", id, "ack", ack, "error", err)
	}
}

// Shutdown stops the consumer and waits for the in-flight delivery before
// closing the connection
func (rt *rabbitmqRuntime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	ch, conn := rt.channel, rt.conn
	rt.mu.Unlock()

	if ch == nil {
		return nil
	}

	if err := ch.Cancel(rabbitmqConsumerTag, false); err != nil {
		rt.logger.Warn("Failed to cancel consumer", "error", err)
	}

	var waitErr error
	select {
	case <-rt.done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("waiting for in-flight message: %w", ctx.Err())
	}

	ch.Close()
	conn.Close()
	rt.logger.Info("RabbitMQ consumer stopped")
	return waitErr
}
