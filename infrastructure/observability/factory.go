package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
	cwAdapter "github.com/jayllellis/do-spaces-media-offload/infrastructure/observability/adapters/cloudwatch"
	promAdapter "github.com/jayllellis/do-spaces-media-offload/infrastructure/observability/adapters/prometheus"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/observability/adapters/stdout"
)

// createObservability picks the logger and metrics adapters from config
func createObservability(cfg *config.Config) (ports.Logger, ports.Metrics, error) {
	var logger ports.Logger
	switch cfg.Adapters.Logger {
	case "stdout", "":
		logger = stdout.NewLogger(cfg.Observability.LogFormat, cfg.LogLevel)
	case "cloudwatch":
		cw, err := cwAdapter.NewLogger(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create CloudWatch logger: %w", err)
		}
		logger = cw
	default:
		return nil, nil, fmt.Errorf("unsupported logger adapter: %s", cfg.Adapters.Logger)
	}

	var metrics ports.Metrics
	switch cfg.Adapters.Metrics {
	case "stdout", "":
		metrics = stdout.NewMetrics(cfg.Observability.LogFormat)
	case "prometheus":
		metrics = promAdapter.NewMetrics(cfg.ServiceName, prometheus.DefaultRegisterer)
	case "cloudwatch":
		cw, err := cwAdapter.NewMetrics(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create CloudWatch metrics: %w", err)
		}
		metrics = cw
	default:
		return nil, nil, fmt.Errorf("unsupported metrics adapter: %s", cfg.Adapters.Metrics)
	}

	return logger, metrics, nil
}
