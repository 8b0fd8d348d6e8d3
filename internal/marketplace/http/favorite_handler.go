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
	customValidation "github.com/allisson/marketsync/internal/validation"
)

// FavoriteHandler handles saved listing HTTP requests.
type FavoriteHandler struct {
	favoriteUseCase marketplaceUseCase.FavoriteUseCase
	logger          *slog.Logger
}

// NewFavoriteHandler creates a new favorite handler with required dependencies.
func NewFavoriteHandler(favoriteUseCase marketplaceUseCase.FavoriteUseCase, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		favoriteUseCase: favoriteUseCase,
		logger:          logger,
	}
}

// AddHandler saves a listing for a user.
// POST /v1/favorites
func (h *FavoriteHandler) AddHandler(c *gin.Context) {
	req, ok := h.bindFavorite(c)
	if !ok {
		return
	}

	favorite, err := h.favoriteUseCase.Add(
		c.Request.Context(),
		uuid.MustParse(req.UserID),
		uuid.MustParse(req.ListingID),
		req.Origin,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapFavoriteToResponse(favorite))
}

// RemoveHandler removes a saved listing.
// DELETE /v1/favorites
func (h *FavoriteHandler) RemoveHandler(c *gin.Context) {
	req, ok := h.bindFavorite(c)
	if !ok {
		return
	}

	err := h.favoriteUseCase.Remove(
		c.Request.Context(),
		uuid.MustParse(req.UserID),
		uuid.MustParse(req.ListingID),
		req.Origin,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListHandler lists the listings a user saved.
// GET /v1/favorites?user_id=
func (h *FavoriteHandler) ListHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid user_id parameter: must be a valid UUID"),
			h.logger)
		return
	}

	favorites, err := h.favoriteUseCase.ListByUser(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFavoritesToListResponse(favorites))
}

func (h *FavoriteHandler) bindFavorite(c *gin.Context) (*dto.FavoriteRequest, bool) {
	var req dto.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return nil, false
	}
	return &req, true
}
