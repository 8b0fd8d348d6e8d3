package app

import (
	"fmt"

	marketplaceHTTP "github.com/allisson/marketsync/internal/marketplace/http"
	marketplaceRepository "github.com/allisson/marketsync/internal/marketplace/repository"
	marketplaceUseCase "github.com/allisson/marketsync/internal/marketplace/usecase"
)

// ListingRepository returns the listing repository for the configured database driver.
func (c *Container) ListingRepository() (marketplaceUseCase.ListingRepository, error) {
	err := c.lazy(&c.listingRepoInit, "listingRepo", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for listing repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			c.listingRepo = marketplaceRepository.NewPostgreSQLListingRepository(db)
		case "mysql":
			c.listingRepo = marketplaceRepository.NewMySQLListingRepository(db)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.listingRepo, nil
}

// ProposalRepository returns the proposal repository for the configured database driver.
func (c *Container) ProposalRepository() (marketplaceUseCase.ProposalRepository, error) {
	err := c.lazy(&c.proposalRepoInit, "proposalRepo", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for proposal repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			c.proposalRepo = marketplaceRepository.NewPostgreSQLProposalRepository(db)
		case "mysql":
			c.proposalRepo = marketplaceRepository.NewMySQLProposalRepository(db)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.proposalRepo, nil
}

// FavoriteRepository returns the favorite repository for the configured database driver.
func (c *Container) FavoriteRepository() (marketplaceUseCase.FavoriteRepository, error) {
	err := c.lazy(&c.favoriteRepoInit, "favoriteRepo", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for favorite repository: %w", err)
		}
		switch c.config.DBDriver {
		case "postgres":
			c.favoriteRepo = marketplaceRepository.NewPostgreSQLFavoriteRepository(db)
		case "mysql":
			c.favoriteRepo = marketplaceRepository.NewMySQLFavoriteRepository(db)
		default:
			return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.favoriteRepo, nil
}

// ListingUseCase returns the listing use case.
func (c *Container) ListingUseCase() (marketplaceUseCase.ListingUseCase, error) {
	err := c.lazy(&c.listingUseCaseInit, "listingUseCase", func() error {
		var err error
		c.listingUseCase, err = c.initListingUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.listingUseCase, nil
}

// ProposalUseCase returns the proposal use case.
func (c *Container) ProposalUseCase() (marketplaceUseCase.ProposalUseCase, error) {
	err := c.lazy(&c.proposalUseCaseInit, "proposalUseCase", func() error {
		var err error
		c.proposalUseCase, err = c.initProposalUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.proposalUseCase, nil
}

// FavoriteUseCase returns the favorite use case.
func (c *Container) FavoriteUseCase() (marketplaceUseCase.FavoriteUseCase, error) {
	err := c.lazy(&c.favoriteUseCaseInit, "favoriteUseCase", func() error {
		var err error
		c.favoriteUseCase, err = c.initFavoriteUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.favoriteUseCase, nil
}

// ListingHandler returns the listing HTTP handler.
func (c *Container) ListingHandler() (*marketplaceHTTP.ListingHandler, error) {
	err := c.lazy(&c.listingHandlerInit, "listingHandler", func() error {
		useCase, err := c.ListingUseCase()
		if err != nil {
			return fmt.Errorf("failed to get listing use case for listing handler: %w", err)
		}
		c.listingHandler = marketplaceHTTP.NewListingHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.listingHandler, nil
}

// ProposalHandler returns the proposal HTTP handler.
func (c *Container) ProposalHandler() (*marketplaceHTTP.ProposalHandler, error) {
	err := c.lazy(&c.proposalHandlerInit, "proposalHandler", func() error {
		useCase, err := c.ProposalUseCase()
		if err != nil {
			return fmt.Errorf("failed to get proposal use case for proposal handler: %w", err)
		}
		c.proposalHandler = marketplaceHTTP.NewProposalHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.proposalHandler, nil
}

// FavoriteHandler returns the favorite HTTP handler.
func (c *Container) FavoriteHandler() (*marketplaceHTTP.FavoriteHandler, error) {
	err := c.lazy(&c.favoriteHandlerInit, "favoriteHandler", func() error {
		useCase, err := c.FavoriteUseCase()
		if err != nil {
			return fmt.Errorf("failed to get favorite use case for favorite handler: %w", err)
		}
		c.favoriteHandler = marketplaceHTTP.NewFavoriteHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.favoriteHandler, nil
}

func (c *Container) initListingUseCase() (marketplaceUseCase.ListingUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for listing use case: %w", err)
	}

	listingRepo, err := c.ListingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get listing repository for listing use case: %w", err)
	}

	captureUseCase, err := c.CaptureUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capture use case for listing use case: %w", err)
	}

	baseUseCase := marketplaceUseCase.NewListingUseCase(txManager, listingRepo, captureUseCase)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for listing use case: %w", err)
		}
		return marketplaceUseCase.NewListingUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initProposalUseCase() (marketplaceUseCase.ProposalUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for proposal use case: %w", err)
	}

	proposalRepo, err := c.ProposalRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal repository for proposal use case: %w", err)
	}

	captureUseCase, err := c.CaptureUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capture use case for proposal use case: %w", err)
	}

	baseUseCase := marketplaceUseCase.NewProposalUseCase(txManager, proposalRepo, captureUseCase)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for proposal use case: %w", err)
		}
		return marketplaceUseCase.NewProposalUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initFavoriteUseCase() (marketplaceUseCase.FavoriteUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for favorite use case: %w", err)
	}

	favoriteRepo, err := c.FavoriteRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite repository for favorite use case: %w", err)
	}

	captureUseCase, err := c.CaptureUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capture use case for favorite use case: %w", err)
	}

	baseUseCase := marketplaceUseCase.NewFavoriteUseCase(txManager, favoriteRepo, captureUseCase)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for favorite use case: %w", err)
		}
		return marketplaceUseCase.NewFavoriteUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
