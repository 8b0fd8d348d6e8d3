package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/marketsync/internal/app"
	"github.com/allisson/marketsync/internal/config"
)

// component is a long-running part of a process: a server or the outbox scheduler.
type component struct {
	name     string
	start    func(ctx context.Context) error
	shutdown func(ctx context.Context) error
}

// RunServer starts the HTTP API and, unless withWorker is false, the outbox scheduler in the
// same process. Blocks until receiving SIGINT/SIGTERM or encountering a fatal error.
func RunServer(ctx context.Context, version string, withWorker bool) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version), slog.Bool("worker", withWorker))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	components := []component{
		{name: "api server", start: server.Start, shutdown: server.Shutdown},
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		components = append(components, component{
			name:     "metrics server",
			start:    metricsServer.Start,
			shutdown: metricsServer.Shutdown,
		})
	}

	if withWorker {
		scheduler, err := container.Scheduler(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize outbox scheduler: %w", err)
		}
		components = append(components, component{name: "outbox scheduler", start: scheduler.Start})
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runComponents(ctx, logger, cfg.DBConnMaxLifetime, components...)
}

// RunWorker starts the outbox scheduler without the HTTP API. The metrics server is started
// when metrics are enabled.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	scheduler, err := container.Scheduler(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize outbox scheduler: %w", err)
	}

	components := []component{
		{name: "outbox scheduler", start: scheduler.Start},
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		components = append(components, component{
			name:     "metrics server",
			start:    metricsServer.Start,
			shutdown: metricsServer.Shutdown,
		})
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runComponents(ctx, logger, cfg.DBConnMaxLifetime, components...)
}

// runComponents starts every component and waits for ctx to end or for one of them to fail.
// Either way every component with a shutdown hook is stopped within shutdownTimeout.
func runComponents(
	ctx context.Context,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
	components ...component,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range components {
		g.Go(func() error {
			if err := c.start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s error: %w", c.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("component failed, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, c := range components {
			if c.shutdown == nil {
				continue
			}
			if err := c.shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", c.name, err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
