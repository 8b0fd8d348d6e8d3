// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	authService "github.com/allisson/marketsync/internal/auth/service"
	"github.com/allisson/marketsync/internal/config"
	"github.com/allisson/marketsync/internal/database"
	"github.com/allisson/marketsync/internal/http"
	marketplaceHTTP "github.com/allisson/marketsync/internal/marketplace/http"
	marketplaceUseCase "github.com/allisson/marketsync/internal/marketplace/usecase"
	"github.com/allisson/marketsync/internal/metrics"
	outboxHTTP "github.com/allisson/marketsync/internal/outbox/http"
	outboxService "github.com/allisson/marketsync/internal/outbox/service"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
	syncConfigService "github.com/allisson/marketsync/internal/syncconfig/service"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	outboxMetrics   metrics.OutboxMetrics

	// Managers
	txManager database.TxManager

	// Sync configuration
	syncConfigRepo syncConfigService.ConfigRepository
	catalog        *syncConfigService.Catalog

	// Outbox
	outboxRepo       outboxUseCase.OutboxRepository
	remoteClient     *outboxService.RemoteClient
	captureUseCase   outboxUseCase.CaptureUseCase
	dispatchUseCase  outboxUseCase.DispatchUseCase
	sweepUseCase     outboxUseCase.SweepUseCase
	statusUseCase    outboxUseCase.StatusUseCase
	operatorUseCase  outboxUseCase.OperatorUseCase
	scheduler        *outboxUseCase.Scheduler
	outboxHandler    *outboxHTTP.OutboxHandler
	operatorTokenSvc authService.OperatorTokenService

	// Marketplace
	listingRepo     marketplaceUseCase.ListingRepository
	proposalRepo    marketplaceUseCase.ProposalRepository
	favoriteRepo    marketplaceUseCase.FavoriteRepository
	listingUseCase  marketplaceUseCase.ListingUseCase
	proposalUseCase marketplaceUseCase.ProposalUseCase
	favoriteUseCase marketplaceUseCase.FavoriteUseCase
	listingHandler  *marketplaceHTTP.ListingHandler
	proposalHandler *marketplaceHTTP.ProposalHandler
	favoriteHandler *marketplaceHTTP.FavoriteHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	dbInit               sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	outboxMetricsInit    sync.Once
	txManagerInit        sync.Once
	syncConfigRepoInit   sync.Once
	catalogInit          sync.Once
	outboxRepoInit       sync.Once
	remoteClientInit     sync.Once
	captureUseCaseInit   sync.Once
	dispatchUseCaseInit  sync.Once
	sweepUseCaseInit     sync.Once
	statusUseCaseInit    sync.Once
	operatorUseCaseInit  sync.Once
	schedulerInit        sync.Once
	outboxHandlerInit    sync.Once
	operatorTokenSvcInit sync.Once
	listingRepoInit      sync.Once
	proposalRepoInit     sync.Once
	favoriteRepoInit     sync.Once
	listingUseCaseInit   sync.Once
	proposalUseCaseInit  sync.Once
	favoriteUseCaseInit  sync.Once
	listingHandlerInit   sync.Once
	proposalHandlerInit  sync.Once
	favoriteHandlerInit  sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// lazy runs init once and remembers its error under name so later calls fail the same way.
func (c *Container) lazy(once *sync.Once, name string, init func() error) error {
	once.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	err := c.lazy(&c.dbInit, "db", func() error {
		var err error
		c.db, err = c.initDB()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.lazy(&c.txManagerInit, "txManager", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		c.txManager = database.NewTxManager(db)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	err := c.lazy(&c.metricsProviderInit, "metricsProvider", func() error {
		var err error
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business operation metrics, a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.lazy(&c.businessMetricsInit, "businessMetrics", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return nil
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create business metrics: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// OutboxMetrics returns the outbox delivery and backlog metrics, a no-op when metrics are disabled.
func (c *Container) OutboxMetrics() (metrics.OutboxMetrics, error) {
	err := c.lazy(&c.outboxMetricsInit, "outboxMetrics", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.outboxMetrics = metrics.NewNoOpOutboxMetrics()
			return nil
		}
		c.outboxMetrics, err = metrics.NewOutboxMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create outbox metrics: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.outboxMetrics, nil
}

// HTTPServer returns the HTTP server with every route registered.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	err := c.lazy(&c.httpServerInit, "httpServer", func() error {
		var err error
		c.httpServer, err = c.initHTTPServer(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	err := c.lazy(&c.metricsServerInit, "metricsServer", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			return nil
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	listingHandler, err := c.ListingHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get listing handler for http server: %w", err)
	}

	proposalHandler, err := c.ProposalHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal handler for http server: %w", err)
	}

	favoriteHandler, err := c.FavoriteHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite handler for http server: %w", err)
	}

	outboxHandler, err := c.OutboxHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(
		ctx,
		http.RouterConfig{
			CORSEnabled:             c.config.CORSEnabled,
			CORSAllowOrigins:        c.config.CORSAllowOrigins,
			OperatorTokenHash:       c.config.OperatorTokenHash,
			OperatorRateLimitPerSec: c.config.OperatorRateLimitPerSec,
			OperatorRateLimitBurst:  c.config.OperatorRateLimitBurst,
			MetricsNamespace:        c.config.MetricsNamespace,
		},
		listingHandler,
		proposalHandler,
		favoriteHandler,
		outboxHandler,
		c.OperatorTokenService(),
		metricsProvider,
	)

	return server, nil
}
