// Package http provides the operator HTTP handlers for inspecting and driving the outbox.
package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/marketsync/internal/httputil"
	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/http/dto"
	outboxUseCase "github.com/allisson/marketsync/internal/outbox/usecase"
	customValidation "github.com/allisson/marketsync/internal/validation"
)

// OutboxHandler handles operator requests against the outbox.
type OutboxHandler struct {
	statusUseCase     outboxUseCase.StatusUseCase
	dispatchUseCase   outboxUseCase.DispatchUseCase
	sweepUseCase      outboxUseCase.SweepUseCase
	operatorUseCase   outboxUseCase.OperatorUseCase
	defaultBatchSize  int
	defaultSweepLimit int
	logger            *slog.Logger
}

// NewOutboxHandler creates a new outbox handler with required dependencies.
// defaultBatchSize and defaultSweepLimit apply when a request leaves them at zero.
func NewOutboxHandler(
	statusUseCase outboxUseCase.StatusUseCase,
	dispatchUseCase outboxUseCase.DispatchUseCase,
	sweepUseCase outboxUseCase.SweepUseCase,
	operatorUseCase outboxUseCase.OperatorUseCase,
	defaultBatchSize int,
	defaultSweepLimit int,
	logger *slog.Logger,
) *OutboxHandler {
	return &OutboxHandler{
		statusUseCase:     statusUseCase,
		dispatchUseCase:   dispatchUseCase,
		sweepUseCase:      sweepUseCase,
		operatorUseCase:   operatorUseCase,
		defaultBatchSize:  defaultBatchSize,
		defaultSweepLimit: defaultSweepLimit,
		logger:            logger,
	}
}

// StatusHandler reports entry counts per source table and status.
// GET /v1/outbox/status?source_table=&status=
func (h *OutboxHandler) StatusHandler(c *gin.Context) {
	filter, err := parseStatusFilter(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	report, err := h.statusUseCase.Report(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusReportToResponse(report))
}

// ListFailedHandler lists failed entries, most recently processed first.
// GET /v1/outbox/entries/failed?source_table=&offset=&limit=
func (h *OutboxHandler) ListFailedHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	filter := domain.StatusFilter{SourceTable: c.Query("source_table"), Status: domain.StatusFailed}
	entries, err := h.statusUseCase.ListFailed(c.Request.Context(), filter, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntriesToListResponse(entries))
}

// GetHandler returns a single entry.
// GET /v1/outbox/entries/:id
func (h *OutboxHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseEntryID(c)
	if !ok {
		return
	}

	entry, err := h.statusUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// DispatchHandler runs one delivery batch immediately.
// POST /v1/outbox/dispatch
func (h *OutboxHandler) DispatchHandler(c *gin.Context) {
	var req dto.DispatchRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = h.defaultBatchSize
	}

	result, err := h.dispatchUseCase.Dispatch(c.Request.Context(), batchSize)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDispatchResultToResponse(result))
}

// SweepHandler recovers stalled entries and requeues due failures immediately.
// POST /v1/outbox/sweep
func (h *OutboxHandler) SweepHandler(c *gin.Context) {
	var req dto.SweepRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.defaultSweepLimit
	}

	result, err := h.sweepUseCase.Sweep(c.Request.Context(), limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSweepResultToResponse(result))
}

// RequeueHandler gives a terminally failed entry a fresh set of attempts.
// POST /v1/outbox/entries/:id/requeue
func (h *OutboxHandler) RequeueHandler(c *gin.Context) {
	id, ok := h.parseEntryID(c)
	if !ok {
		return
	}

	entry, err := h.operatorUseCase.Requeue(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("outbox entry requeued by operator",
		slog.String("entry_id", entry.ID.String()),
		slog.String("source_table", entry.SourceTable),
		slog.String("record_id", entry.RecordID),
	)
	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// SkipHandler abandons a pending entry.
// POST /v1/outbox/entries/:id/skip
func (h *OutboxHandler) SkipHandler(c *gin.Context) {
	id, ok := h.parseEntryID(c)
	if !ok {
		return
	}

	var req dto.SkipRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	entry, err := h.operatorUseCase.Skip(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("outbox entry skipped by operator",
		slog.String("entry_id", entry.ID.String()),
		slog.String("source_table", entry.SourceTable),
		slog.String("record_id", entry.RecordID),
	)
	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

func (h *OutboxHandler) parseEntryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid entry ID format: must be a valid UUID"),
			h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds the request body when one is present. An empty body keeps the zero value.
func (h *OutboxHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	return true
}

func parseStatusFilter(c *gin.Context) (domain.StatusFilter, error) {
	filter := domain.StatusFilter{SourceTable: c.Query("source_table")}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.StatusFilter{}, fmt.Errorf("invalid status parameter: %w", err)
		}
		filter.Status = status
	}
	return filter, nil
}
