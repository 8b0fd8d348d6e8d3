// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/marketsync/internal/auth/http"
	authService "github.com/allisson/marketsync/internal/auth/service"
	marketplaceHTTP "github.com/allisson/marketsync/internal/marketplace/http"
	"github.com/allisson/marketsync/internal/metrics"
	outboxHTTP "github.com/allisson/marketsync/internal/outbox/http"
)

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// RouterConfig carries the settings SetupRouter needs beyond the handlers.
type RouterConfig struct {
	CORSEnabled             bool
	CORSAllowOrigins        string
	OperatorTokenHash       string
	OperatorRateLimitPerSec float64
	OperatorRateLimitBurst  int
	MetricsNamespace        string
}

// NewServer creates a new HTTP server
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the Gin router with every route of the service.
//
// Marketplace writes are public to the service network. The outbox operator API is
// rate limited per IP first and then requires the operator bearer token.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg RouterConfig,
	listingHandler *marketplaceHTTP.ListingHandler,
	proposalHandler *marketplaceHTTP.ProposalHandler,
	favoriteHandler *marketplaceHTTP.FavoriteHandler,
	outboxHandler *outboxHTTP.OutboxHandler,
	operatorTokenService authService.OperatorTokenService,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	listings := v1.Group("/listings")
	{
		listings.POST("", listingHandler.CreateHandler)
		listings.GET("/:id", listingHandler.GetHandler)
		listings.PATCH("/:id", listingHandler.UpdateHandler)
		listings.DELETE("/:id", listingHandler.DeleteHandler)
	}

	proposals := v1.Group("/proposals")
	{
		proposals.POST("", proposalHandler.CreateHandler)
		proposals.GET("/:id", proposalHandler.GetHandler)
		proposals.POST("/:id/status", proposalHandler.UpdateStatusHandler)
	}

	favorites := v1.Group("/favorites")
	{
		favorites.POST("", favoriteHandler.AddHandler)
		favorites.DELETE("", favoriteHandler.RemoveHandler)
		favorites.GET("", favoriteHandler.ListHandler)
	}

	outbox := v1.Group("/outbox")
	outbox.Use(authHTTP.OperatorRateLimitMiddleware(
		ctx,
		cfg.OperatorRateLimitPerSec,
		cfg.OperatorRateLimitBurst,
		s.logger,
	))
	outbox.Use(authHTTP.OperatorAuthMiddleware(operatorTokenService, cfg.OperatorTokenHash, s.logger))
	{
		outbox.GET("/status", outboxHandler.StatusHandler)
		outbox.GET("/entries/failed", outboxHandler.ListFailedHandler)
		outbox.GET("/entries/:id", outboxHandler.GetHandler)
		outbox.POST("/entries/:id/requeue", outboxHandler.RequeueHandler)
		outbox.POST("/entries/:id/skip", outboxHandler.SkipHandler)
		outbox.POST("/dispatch", outboxHandler.DispatchHandler)
		outbox.POST("/sweep", outboxHandler.SweepHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports that the process is alive.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the service can take traffic.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}

	if s.db == nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
