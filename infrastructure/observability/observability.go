package observability

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

var errNotInitialized = errors.New("observability not initialized")

// Provider is the process-wide observability root. Close flushes buffered
// metrics and log events.
type Provider interface {
	ports.Observability
	io.Closer
}

type scope struct {
	logger  ports.Logger
	metrics ports.Metrics
}

type observability struct {
	config  *config.Config
	logger  ports.Logger
	metrics ports.Metrics
	closers []io.Closer

	mu     sync.Mutex
	scopes map[string]scope
}

func CreateObservability(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	logger, metrics, err := createObservability(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create observability: %w", err)
	}
	return newObservability(cfg, logger, metrics), nil
}

func newObservability(cfg *config.Config, logger ports.Logger, metrics ports.Metrics) *observability {
	obs := &observability{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		scopes:  make(map[string]scope),
	}
	// metrics first so their final log lines still reach the logger
	for _, c := range []interface{}{metrics, logger} {
		if closer, ok := c.(io.Closer); ok {
			obs.closers = append(obs.closers, closer)
		}
	}
	return obs
}

// Close flushes adapters that send in the background
func (obs *observability) Close() error {
	var errs []error
	for _, c := range obs.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (obs *observability) Components() (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, errNotInitialized
	}
	return obs.logger, obs.metrics, nil
}

// ComponentsScoped returns logger and metrics carrying service and
// component identity. Scopes are built once per component name.
func (obs *observability) ComponentsScoped(component string) (ports.Logger, ports.Metrics, error) {
	if obs.logger == nil || obs.metrics == nil {
		return nil, nil, errNotInitialized
	}
	s := obs.scoped(component)
	return s.logger, s.metrics, nil
}

func (obs *observability) Logger() (ports.Logger, error) {
	if obs.logger == nil {
		return nil, errNotInitialized
	}
	return obs.logger, nil
}

func (obs *observability) LoggerScoped(component string) (ports.Logger, error) {
	logger, _, err := obs.ComponentsScoped(component)
	return logger, err
}

func (obs *observability) Metrics() (ports.Metrics, error) {
	if obs.metrics == nil {
		return nil, errNotInitialized
	}
	return obs.metrics, nil
}

func (obs *observability) MetricsScoped(component string) (ports.Metrics, error) {
	_, metrics, err := obs.ComponentsScoped(component)
	return metrics, err
}

func (obs *observability) scoped(component string) scope {
	obs.mu.Lock()
	defer obs.mu.Unlock()

	if s, ok := obs.scopes[component]; ok {
		return s
	}

	identity := map[string]string{
		"service":   obs.config.ServiceName,
		"version":   obs.config.Version,
		"env":       obs.config.Environment,
		"component": component,
	}
	fields := make(map[string]interface{}, len(identity))
	for k, v := range identity {
		fields[k] = v
	}

	s := scope{
		logger:  obs.logger.WithFields(fields),
		metrics: obs.metrics.WithTags(identity),
	}
	obs.scopes[component] = s
	return s
}
