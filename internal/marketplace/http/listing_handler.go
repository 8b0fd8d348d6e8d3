// Package http provides the HTTP handlers for marketplace writes.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/httputil"
	"github.com/allisson/marketsync/internal/marketplace/http/dto"
	marketplaceUseCase "github.com/allisson/marketsync/internal/marketplace/usecase"
	outboxDomain "github.com/allisson/marketsync/internal/outbox/domain"
	customValidation "github.com/allisson/marketsync/internal/validation"
)

// ListingHandler handles listing HTTP requests.
type ListingHandler struct {
	listingUseCase marketplaceUseCase.ListingUseCase
	logger         *slog.Logger
}

// NewListingHandler creates a new listing handler with required dependencies.
func NewListingHandler(listingUseCase marketplaceUseCase.ListingUseCase, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listingUseCase: listingUseCase,
		logger:         logger,
	}
}

// CreateHandler creates a listing.
// POST /v1/listings
func (h *ListingHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	listing, err := h.listingUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapListingToResponse(listing))
}

// GetHandler retrieves a listing.
// GET /v1/listings/:id
func (h *ListingHandler) GetHandler(c *gin.Context) {
	id, ok := parseID(c, "listing", h.logger)
	if !ok {
		return
	}

	listing, err := h.listingUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapListingToResponse(listing))
}

// UpdateHandler applies a partial update to a listing.
// PATCH /v1/listings/:id
func (h *ListingHandler) UpdateHandler(c *gin.Context) {
	id, ok := parseID(c, "listing", h.logger)
	if !ok {
		return
	}

	var req dto.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	listing, err := h.listingUseCase.Update(c.Request.Context(), id, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapListingToResponse(listing))
}

// DeleteHandler deletes a listing.
// DELETE /v1/listings/:id?origin=
func (h *ListingHandler) DeleteHandler(c *gin.Context) {
	id, ok := parseID(c, "listing", h.logger)
	if !ok {
		return
	}

	origin, ok := parseOrigin(c, h.logger)
	if !ok {
		return
	}

	if err := h.listingUseCase.Delete(c.Request.Context(), id, origin); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context, resource string, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid %s ID format: must be a valid UUID", resource),
			logger)
		return uuid.Nil, false
	}
	return id, true
}

func parseOrigin(c *gin.Context, logger *slog.Logger) (string, bool) {
	origin := c.Query("origin")
	switch origin {
	case "", outboxDomain.OriginLocal, outboxDomain.OriginRemote:
		return origin, true
	default:
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid origin parameter: must be local or remote"), logger)
		return "", false
	}
}
