package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/observability"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/queue"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/repository"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/runtime"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/storage"
	"github.com/jayllellis/do-spaces-media-offload/internal/handler"
	"github.com/jayllellis/do-spaces-media-offload/internal/offload"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := loadConfiguration()

	deps := initializeDependencies(cfg)
	defer deps.close()

	app := buildApplication(cfg, deps)

	if err := runApplication(app); err != nil {
		deps.logger.Error("Application stopped with error", "error", err)
		deps.close()
		os.Exit(1)
	}
}

// Dependencies holds the infrastructure adapters
type Dependencies struct {
	obs     observability.Provider
	store   ports.ObjectStore
	ledger  ports.KeyLedger
	queue   ports.Queue
	logger  ports.Logger
	metrics ports.Metrics
	closed  bool
}

// Application holds the assembled runtime
type Application struct {
	runtime ports.Runtime
	logger  ports.Logger
	metrics ports.Metrics
}

func loadConfiguration() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func initializeDependencies(cfg *config.Config) *Dependencies {
	obs, err := observability.CreateObservability(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	logger, metrics, err := obs.ComponentsScoped("main")
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	logger.Info("Starting application",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"runtime", cfg.Adapters.Runtime,
		"storage", cfg.Adapters.Storage,
		"ledger", cfg.Adapters.Ledger,
		"publisher", cfg.Adapters.Publisher)
	metrics.IncrementCounter("application.starts", nil)

	store, err := storage.CreateObjectStore(cfg, obs)
	if err != nil {
		fail(logger, metrics, "Failed to initialize storage", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Timeout)
	defer cancel()

	ledger, err := repository.CreateKeyLedger(ctx, cfg, obs)
	if err != nil {
		fail(logger, metrics, "Failed to initialize key ledger", err)
	}

	q, err := queue.CreateQueue(cfg, obs)
	if err != nil {
		fail(logger, metrics, "Failed to initialize result publisher", err)
	}

	return &Dependencies{
		obs:     obs,
		store:   store,
		ledger:  ledger,
		queue:   q,
		logger:  logger,
		metrics: metrics,
	}
}

func buildApplication(cfg *config.Config, deps *Dependencies) *Application {
	resolver := media.NewKeyResolver(media.KeyResolverConfig{
		RemotePrefix:    cfg.Offload.RemotePrefix,
		ImageExtensions: cfg.Offload.ImageExtensions,
		Prober:          media.FileProber{},
	})
	rewriter := media.NewURLRewriter(
		cfg.Offload.SiteURL,
		cfg.Offload.CDNURL,
		cfg.Offload.LocalUploadSegment,
		cfg.Offload.RemotePrefix,
	)

	engine, err := offload.NewEngine(resolver, deps.store, deps.ledger, deps.obs)
	if err != nil {
		fail(deps.logger, deps.metrics, "Failed to create offload engine", err)
	}

	var opts []handler.Option
	if deps.queue != nil {
		opts = append(opts, handler.WithPublisher(deps.queue, cfg.Publisher.Target, cfg.Publisher.Timeout))
	}

	h, err := handler.NewHandler(engine, rewriter, deps.obs, opts...)
	if err != nil {
		fail(deps.logger, deps.metrics, "Failed to create handler", err)
	}

	rt, err := runtime.Create(cfg, h, deps.obs)
	if err != nil {
		fail(deps.logger, deps.metrics, "Failed to create runtime", err)
	}

	return &Application{runtime: rt, logger: deps.logger, metrics: deps.metrics}
}

// runApplication blocks until the runtime stops or a termination signal
// arrives, then drains the in-flight request
func runApplication(app *Application) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.runtime.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		app.logger.Info("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.runtime.Shutdown(ctx); err != nil {
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.New("runtime did not stop before the shutdown timeout")
	}
}

func (d *Dependencies) close() {
	if d.closed {
		return
	}
	d.closed = true

	if d.queue != nil {
		if err := d.queue.Close(); err != nil {
			d.logger.Error("Failed to close result publisher", "error", err)
		}
	}
	if closer, ok := d.ledger.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			d.logger.Error("Failed to close key ledger", "error", err)
		}
	}
	if err := d.obs.Close(); err != nil {
		log.Printf("Failed to flush observability: %v", err)
	}
}

func fail(logger ports.Logger, metrics ports.Metrics, msg string, err error) {
	logger.Error(msg, "error", err)
	metrics.IncrementCounter("init.failures", nil)
	log.Fatalf("%s: %v", msg, err)
}
