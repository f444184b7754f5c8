// Package queue publishes batch results for downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

// sender delivers one encoded message over a transport
type sender interface {
	send(ctx context.Context, target, msgType string, body []byte) error
	close() error
}

// Publisher implements ports.Queue on top of a transport sender
type Publisher struct {
	transport string
	sender    sender
	logger    ports.Logger
	metrics   ports.Metrics
}

func newPublisher(transport string, s sender, logger ports.Logger, metrics ports.Metrics) *Publisher {
	return &Publisher{transport: transport, sender: s, logger: logger, metrics: metrics}
}

// Publish JSON encodes the message body and hands it to the transport
func (p *Publisher) Publish(ctx context.Context, message *ports.QueueMessage) error {
	start := time.Now()
	tags := map[string]string{"transport": p.transport, "target": message.Target}

	body, err := json.Marshal(message.Body)
	if err != nil {
		p.metrics.IncrementCounter("queue.publish.errors", withReason(tags, "marshal"))
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := p.sender.send(ctx, message.Target, message.Type, body); err != nil {
		p.metrics.IncrementCounter("queue.publish.errors", withReason(tags, "send"))
		return err
	}

	p.metrics.IncrementCounter("queue.publish.success", tags)
	p.metrics.RecordHistogram("queue.publish.duration", time.Since(start).Seconds(), tags)
	p.logger.Info("Message published",
		"target", message.Target,
		"type", message.Type,
		"size", len(body))
	return nil
}

func (p *Publisher) Close() error {
	return p.sender.close()
}

func withReason(tags map[string]string, reason string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	out["reason"] = reason
	return out
}
