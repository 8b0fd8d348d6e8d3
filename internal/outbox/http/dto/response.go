package dto

import (
	"time"

	"github.com/allisson/marketsync/internal/outbox/domain"
	"github.com/allisson/marketsync/internal/outbox/usecase"
)

// EntryResponse represents an outbox entry in API responses.
type EntryResponse struct {
	ID             string         `json:"id"`
	SourceTable    string         `json:"source_table"`
	RecordID       string         `json:"record_id"`
	Operation      string         `json:"operation"`
	Payload        domain.Payload `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key"`
	Status         string         `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	MaxAttempts    int            `json:"max_attempts"`
	NextRetryAt    *time.Time     `json:"next_retry_at,omitempty"`
	ClaimedAt      *time.Time     `json:"claimed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	RemoteResponse *string        `json:"remote_response,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	ErrorDetail    *string        `json:"error_detail,omitempty"`
	Terminal       bool           `json:"terminal"`
}

// MapEntryToResponse converts a domain outbox entry to an API response.
func MapEntryToResponse(entry *domain.OutboxEntry) EntryResponse {
	return EntryResponse{
		ID:             entry.ID.String(),
		SourceTable:    entry.SourceTable,
		RecordID:       entry.RecordID,
		Operation:      entry.Operation.String(),
		Payload:        entry.Payload,
		IdempotencyKey: entry.IdempotencyKey,
		Status:         entry.Status.String(),
		AttemptCount:   entry.AttemptCount,
		MaxAttempts:    entry.MaxAttempts,
		NextRetryAt:    entry.NextRetryAt,
		ClaimedAt:      entry.ClaimedAt,
		CreatedAt:      entry.CreatedAt,
		ProcessedAt:    entry.ProcessedAt,
		RemoteResponse: entry.RemoteResponse,
		ErrorMessage:   entry.ErrorMessage,
		ErrorDetail:    entry.ErrorDetail,
		Terminal:       entry.IsTerminal(),
	}
}

// ListEntriesResponse represents a paginated list of outbox entries in API responses.
type ListEntriesResponse struct {
	Data []EntryResponse `json:"data"`
}

// MapEntriesToListResponse converts a slice of domain entries to a list response.
func MapEntriesToListResponse(entries []*domain.OutboxEntry) ListEntriesResponse {
	data := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, MapEntryToResponse(entry))
	}
	return ListEntriesResponse{Data: data}
}

// StatusCountResponse is the size of one (source table, status) bucket.
type StatusCountResponse struct {
	SourceTable string `json:"source_table"`
	Status      string `json:"status"`
	Count       int64  `json:"count"`
}

// StatusReportResponse represents an outbox status report in API responses.
type StatusReportResponse struct {
	Counts                  []StatusCountResponse `json:"counts"`
	Totals                  map[string]int64      `json:"totals"`
	OldestPendingAt         *time.Time            `json:"oldest_pending_at,omitempty"`
	OldestPendingAgeSeconds float64               `json:"oldest_pending_age_seconds"`
	GeneratedAt             time.Time             `json:"generated_at"`
}

// MapStatusReportToResponse converts a status report to an API response.
// Every lifecycle status is present in Totals, zero when no entry is in it.
func MapStatusReportToResponse(report *usecase.StatusReport) StatusReportResponse {
	counts := make([]StatusCountResponse, 0, len(report.Counts))
	for _, count := range report.Counts {
		counts = append(counts, StatusCountResponse{
			SourceTable: count.SourceTable,
			Status:      count.Status.String(),
			Count:       count.Count,
		})
	}

	totals := make(map[string]int64, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		totals[status.String()] = report.Totals[status]
	}

	return StatusReportResponse{
		Counts:                  counts,
		Totals:                  totals,
		OldestPendingAt:         report.OldestPendingAt,
		OldestPendingAgeSeconds: report.OldestPendingAge.Seconds(),
		GeneratedAt:             report.GeneratedAt,
	}
}

// DispatchResponse reports the outcome of a manual dispatch run.
type DispatchResponse struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retrying  int `json:"retrying"`
	Terminal  int `json:"terminal"`
}

// MapDispatchResultToResponse converts a dispatch result to an API response.
func MapDispatchResultToResponse(result *usecase.DispatchResult) DispatchResponse {
	return DispatchResponse{
		Claimed:   result.Claimed,
		Completed: result.Completed,
		Retrying:  result.Retrying,
		Terminal:  result.Terminal,
	}
}

// SweepResponse reports what a manual sweep changed.
type SweepResponse struct {
	Recovered  int `json:"recovered"`
	Requeued   int `json:"requeued"`
	Superseded int `json:"superseded"`
}

// MapSweepResultToResponse converts a sweep result to an API response.
func MapSweepResultToResponse(result *domain.SweepResult) SweepResponse {
	return SweepResponse{
		Recovered:  result.Recovered,
		Requeued:   result.Requeued,
		Superseded: result.Superseded,
	}
}
