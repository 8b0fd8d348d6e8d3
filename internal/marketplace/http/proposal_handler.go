package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/marketsync/internal/httputil"
	"github.com/allisson/marketsync/internal/marketplace/domain"
	"github.com/allisson/marketsync/internal/marketplace/http/dto"
	marketplaceUseCase "github.com/allisson/marketsync/internal/marketplace/usecase"
	customValidation "github.com/allisson/marketsync/internal/validation"
)

// ProposalHandler handles stay proposal HTTP requests.
type ProposalHandler struct {
	proposalUseCase marketplaceUseCase.ProposalUseCase
	logger          *slog.Logger
}

// NewProposalHandler creates a new proposal handler with required dependencies.
func NewProposalHandler(proposalUseCase marketplaceUseCase.ProposalUseCase, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalUseCase: proposalUseCase,
		logger:          logger,
	}
}

// CreateHandler submits a stay proposal.
// POST /v1/proposals
func (h *ProposalHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	proposal, err := h.proposalUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapProposalToResponse(proposal))
}

// GetHandler retrieves a proposal.
// GET /v1/proposals/:id
func (h *ProposalHandler) GetHandler(c *gin.Context) {
	id, ok := parseID(c, "proposal", h.logger)
	if !ok {
		return
	}

	proposal, err := h.proposalUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProposalToResponse(proposal))
}

// UpdateStatusHandler moves a proposal to a new status.
// POST /v1/proposals/:id/status
func (h *ProposalHandler) UpdateStatusHandler(c *gin.Context) {
	id, ok := parseID(c, "proposal", h.logger)
	if !ok {
		return
	}

	var req dto.UpdateProposalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	proposal, err := h.proposalUseCase.UpdateStatus(
		c.Request.Context(),
		id,
		domain.ProposalStatus(req.Status),
		req.Origin,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProposalToResponse(proposal))
}
