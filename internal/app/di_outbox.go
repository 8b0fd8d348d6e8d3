package app

import (
	"context"
	"fmt"

	authService "github.com/allisson/marketsync/internal/auth/service"
	"github.com/allisson/marketsync/internal/outbox/domain"
	outboxHTTP "github.com/allisson/marketsync/internal/outbox/http"
	outboxRepository "github.com/allisson/marketsync/internal/outbox/repository"
	outboxService "github.com/allisson/marketsync/internal/outbox/service"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
	syncConfigRepository "github.com/allisson/marketsync/internal/syncconfig/repository"
	syncConfigService "github.com/allisson/marketsync/internal/syncconfig/service"
)

// SyncConfigRepository returns the sync policy and field mapping repository.
func (c *Container) SyncConfigRepository() (syncConfigService.ConfigRepository, error) {
	err := c.lazy(&c.syncConfigRepoInit, "syncConfigRepo", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for sync config repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			c.syncConfigRepo = syncConfigRepository.NewPostgreSQLSyncConfigRepository(db)
		case "mysql":
			c.syncConfigRepo = syncConfigRepository.NewMySQLSyncConfigRepository(db)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.syncConfigRepo, nil
}

// Catalog returns the cached view of sync policies and field mappings.
func (c *Container) Catalog() (*syncConfigService.Catalog, error) {
	err := c.lazy(&c.catalogInit, "catalog", func() error {
		repo, err := c.SyncConfigRepository()
		if err != nil {
			return fmt.Errorf("failed to get sync config repository for catalog: %w", err)
		}
		c.catalog = syncConfigService.NewCatalog(repo, c.config.MappingCacheTTL, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.catalog, nil
}

// OutboxRepository returns the outbox repository for the configured database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxRepository, error) {
	err := c.lazy(&c.outboxRepoInit, "outboxRepo", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for outbox repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			c.outboxRepo = outboxRepository.NewPostgreSQLOutboxRepository(db, c.config.OutboxWriterRole)
		case "mysql":
			c.outboxRepo = outboxRepository.NewMySQLOutboxRepository(db)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.outboxRepo, nil
}

// RemoteClient returns the client of the remote system. The API token is decrypted through
// the configured KMS key when only its ciphertext is provided.
func (c *Container) RemoteClient(ctx context.Context) (*outboxService.RemoteClient, error) {
	err := c.lazy(&c.remoteClientInit, "remoteClient", func() error {
		token, err := outboxService.ResolveRemoteToken(
			ctx,
			c.config.RemoteAPIToken,
			c.config.RemoteAPITokenCiphertext,
			c.config.KMSKeyURI,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve remote api token: %w", err)
		}
		c.remoteClient = outboxService.NewRemoteClient(outboxService.RemoteClientConfig{
			BaseURL:    c.config.RemoteBaseURL,
			Token:      token,
			Timeout:    c.config.RemoteTimeout,
			RatePerSec: c.config.RemoteRateLimitPerSec,
			RateBurst:  c.config.RemoteRateLimitBurst,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.remoteClient, nil
}

// CaptureUseCase returns the capture use case shared by every marketplace write.
func (c *Container) CaptureUseCase() (outboxUseCase.CaptureUseCase, error) {
	err := c.lazy(&c.captureUseCaseInit, "captureUseCase", func() error {
		var err error
		c.captureUseCase, err = c.initCaptureUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.captureUseCase, nil
}

// DispatchUseCase returns the dispatcher.
func (c *Container) DispatchUseCase(ctx context.Context) (outboxUseCase.DispatchUseCase, error) {
	err := c.lazy(&c.dispatchUseCaseInit, "dispatchUseCase", func() error {
		var err error
		c.dispatchUseCase, err = c.initDispatchUseCase(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.dispatchUseCase, nil
}

// SweepUseCase returns the retry sweeper.
func (c *Container) SweepUseCase() (outboxUseCase.SweepUseCase, error) {
	err := c.lazy(&c.sweepUseCaseInit, "sweepUseCase", func() error {
		var err error
		c.sweepUseCase, err = c.initSweepUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.sweepUseCase, nil
}

// StatusUseCase returns the read-only outbox views.
func (c *Container) StatusUseCase() (outboxUseCase.StatusUseCase, error) {
	err := c.lazy(&c.statusUseCaseInit, "statusUseCase", func() error {
		var err error
		c.statusUseCase, err = c.initStatusUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.statusUseCase, nil
}

// OperatorUseCase returns the manual requeue and skip operations.
func (c *Container) OperatorUseCase() (outboxUseCase.OperatorUseCase, error) {
	err := c.lazy(&c.operatorUseCaseInit, "operatorUseCase", func() error {
		txManager, err := c.TxManager()
		if err != nil {
			return fmt.Errorf("failed to get tx manager for operator use case: %w", err)
		}
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			return fmt.Errorf("failed to get outbox repository for operator use case: %w", err)
		}
		c.operatorUseCase = outboxUseCase.NewOperatorUseCase(txManager, outboxRepo, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.operatorUseCase, nil
}

// Scheduler returns the background scheduler driving dispatch and sweep.
func (c *Container) Scheduler(ctx context.Context) (*outboxUseCase.Scheduler, error) {
	err := c.lazy(&c.schedulerInit, "scheduler", func() error {
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			return fmt.Errorf("failed to get outbox repository for scheduler: %w", err)
		}
		dispatcher, err := c.DispatchUseCase(ctx)
		if err != nil {
			return fmt.Errorf("failed to get dispatch use case for scheduler: %w", err)
		}
		sweeper, err := c.SweepUseCase()
		if err != nil {
			return fmt.Errorf("failed to get sweep use case for scheduler: %w", err)
		}
		c.scheduler = outboxUseCase.NewScheduler(
			outboxUseCase.SchedulerConfig{
				FastInterval:      c.config.OutboxFastInterval,
				SlowInterval:      c.config.OutboxSlowInterval,
				BatchSize:         c.config.OutboxBatchSize,
				SweepLimit:        c.config.OutboxSweepLimit,
				ProcessingTimeout: c.config.OutboxProcessingTimeout,
			},
			outboxRepo,
			dispatcher,
			sweeper,
			c.Logger(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.scheduler, nil
}

// OutboxHandler returns the HTTP handler of the operator outbox API.
func (c *Container) OutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	err := c.lazy(&c.outboxHandlerInit, "outboxHandler", func() error {
		statusUseCase, err := c.StatusUseCase()
		if err != nil {
			return fmt.Errorf("failed to get status use case for outbox handler: %w", err)
		}
		dispatchUseCase, err := c.DispatchUseCase(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get dispatch use case for outbox handler: %w", err)
		}
		sweepUseCase, err := c.SweepUseCase()
		if err != nil {
			return fmt.Errorf("failed to get sweep use case for outbox handler: %w", err)
		}
		operatorUseCase, err := c.OperatorUseCase()
		if err != nil {
			return fmt.Errorf("failed to get operator use case for outbox handler: %w", err)
		}
		c.outboxHandler = outboxHTTP.NewOutboxHandler(
			statusUseCase,
			dispatchUseCase,
			sweepUseCase,
			operatorUseCase,
			c.config.OutboxBatchSize,
			c.config.OutboxSweepLimit,
			c.Logger(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.outboxHandler, nil
}

// OperatorTokenService returns the service that hashes and verifies operator tokens.
func (c *Container) OperatorTokenService() authService.OperatorTokenService {
	c.operatorTokenSvcInit.Do(func() {
		c.operatorTokenSvc = authService.NewOperatorTokenService()
	})
	return c.operatorTokenSvc
}

func (c *Container) initCaptureUseCase() (outboxUseCase.CaptureUseCase, error) {
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for capture use case: %w", err)
	}

	catalog, err := c.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog for capture use case: %w", err)
	}

	baseUseCase := outboxUseCase.NewCaptureUseCase(outboxRepo, catalog, c.config.OutboxMaxAttempts, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for capture use case: %w", err)
		}
		return outboxUseCase.NewCaptureUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initDispatchUseCase(ctx context.Context) (outboxUseCase.DispatchUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispatch use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for dispatch use case: %w", err)
	}

	catalog, err := c.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog for dispatch use case: %w", err)
	}

	remoteClient, err := c.RemoteClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get remote client for dispatch use case: %w", err)
	}

	baseUseCase := outboxUseCase.NewDispatchUseCase(
		outboxUseCase.DispatchConfig{
			SubBatchSize: c.config.OutboxSubBatchSize,
			Concurrency:  c.config.OutboxConcurrency,
			BatchTimeout: c.config.OutboxBatchTimeout,
			Backoff: domain.BackoffPolicy{
				Base: c.config.OutboxBackoffBase,
				Max:  c.config.OutboxBackoffMax,
			},
		},
		txManager,
		outboxRepo,
		outboxService.NewTransformer(catalog),
		remoteClient,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for dispatch use case: %w", err)
		}
		outboxMetrics, err := c.OutboxMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox metrics for dispatch use case: %w", err)
		}
		return outboxUseCase.NewDispatchUseCaseWithMetrics(baseUseCase, businessMetrics, outboxMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initSweepUseCase() (outboxUseCase.SweepUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for sweep use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for sweep use case: %w", err)
	}

	baseUseCase := outboxUseCase.NewSweepUseCase(txManager, outboxRepo, c.config.OutboxProcessingTimeout, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for sweep use case: %w", err)
		}
		return outboxUseCase.NewSweepUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initStatusUseCase() (outboxUseCase.StatusUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for status use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for status use case: %w", err)
	}

	baseUseCase := outboxUseCase.NewStatusUseCase(txManager, outboxRepo)

	if c.config.MetricsEnabled {
		outboxMetrics, err := c.OutboxMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox metrics for status use case: %w", err)
		}
		return outboxUseCase.NewStatusUseCaseWithMetrics(baseUseCase, outboxMetrics), nil
	}

	return baseUseCase, nil
}
