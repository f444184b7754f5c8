package runtime

import (
	"fmt"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// Create builds the runtime selected by config
func Create(cfg *config.Config, handler ports.Handler, obs ports.Observability) (ports.Runtime, error) {
	switch cfg.Adapters.Runtime {
	case "lambda":
		return NewLambdaRuntime(&cfg.Lambda, handler, obs)
	case "http":
		return NewHTTPRuntime(&cfg.HTTP, handler, obs)
	case "rabbitmq":
		return NewRabbitMQRuntime(&cfg.RabbitMQ, handler, obs)
	default:
		return nil, fmt.Errorf("unsupported runtime adapter: %s", cfg.Adapters.Runtime)
	}
}
