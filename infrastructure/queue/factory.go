package queue

import (
	"fmt"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// CreateQueue builds the result publisher selected by config. It returns a
// nil Queue when publishing is disabled.
func CreateQueue(cfg *config.Config, obs ports.Observability) (ports.Queue, error) {
	logger, err := obs.LoggerScoped("queue.factory")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger from observability: %w", err)
	}

	switch cfg.Adapters.Publisher {
	case "none", "":
		return nil, nil

	case "rabbitmq":
		logger.Info("Creating RabbitMQ publisher", "target", cfg.Publisher.Target)
		q, err := NewRabbitMQPublisher(&cfg.RabbitMQ, obs)
		if err != nil {
			return nil, err
		}
		return q, nil

	case "sqs":
		logger.Info("Creating SQS publisher",
			"region", cfg.Publisher.SQSRegion,
			"target", cfg.Publisher.Target)
		q, err := NewSQSPublisher(&cfg.Publisher, obs)
		if err != nil {
			return nil, err
		}
		return q, nil

	default:
		return nil, fmt.Errorf("unsupported publisher adapter: %s", cfg.Adapters.Publisher)
	}
}
