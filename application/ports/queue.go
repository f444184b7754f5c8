package ports

import (
	"context"
)

// QueueMessage is a message to be published to a queue
type QueueMessage struct {
	// Queue to publish to
	Target string
	// Type is sent as a message attribute so consumers can route without
	// decoding the body
	Type string
	// Message body (will be JSON encoded)
	Body interface{}
}

// Queue publishes messages for downstream consumers
type Queue interface {
	Publish(ctx context.Context, message *QueueMessage) error
	Close() error
}
