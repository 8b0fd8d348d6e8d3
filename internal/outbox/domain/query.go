package domain

import "time"

// StatusFilter narrows status reports and failure listings. Empty fields match everything.
type StatusFilter struct {
	SourceTable string
	Status      Status
}

// StatusCount is the number of entries in one (source table, status) bucket.
type StatusCount struct {
	SourceTable string
	Status      Status
	Count       int64
}

// FailureUpdate carries the outcome of a failed delivery attempt.
// A nil NextRetryAt marks the failure as terminal.
type FailureUpdate struct {
	AttemptCount int
	NextRetryAt  *time.Time
	ErrorMessage string
	ErrorDetail  *string
	ProcessedAt  time.Time
}

// SweepResult reports what one retry sweep changed.
type SweepResult struct {
	Recovered  int
	Requeued   int
	Superseded int
}

// ProcessingLeaseExpired is recorded on entries recovered from a crashed or stalled worker.
const ProcessingLeaseExpired = "processing lease expired"

// SupersededMessage is recorded on failed entries folded into a newer pending change.
const SupersededMessage = "superseded by a newer pending change"
