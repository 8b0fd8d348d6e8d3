// Package domain defines the core outbox domain entities and types.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an outbox entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusSkipped}

// ParseStatus validates and converts a raw string status.
func ParseStatus(raw string) (Status, error) {
	status := Status(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// IsValid reports whether the status is part of the outbox lifecycle.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the automatic state machine allows moving from s to next.
// A failed entry is skipped when a newer pending change for the same key absorbs it.
// Requeueing a terminal failure is an operator action and is not part of this graph.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusSkipped
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending || next == StatusSkipped
	default:
		return false
	}
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s Status) String() string {
	return string(s)
}

// Operation is the kind of domain write that produced an entry.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// ParseOperation validates and converts a raw operation name.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(raw)
	switch op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOperation, raw)
	}
}

// IsValid reports whether the operation is a known write kind.
func (o Operation) IsValid() bool {
	_, err := ParseOperation(string(o))
	return err == nil
}

func (o Operation) String() string {
	return string(o)
}

// OutboxEntry is one captured logical change awaiting delivery to the remote system.
type OutboxEntry struct {
	ID             uuid.UUID
	SourceTable    string
	RecordID       string
	Operation      Operation
	Payload        Payload
	IdempotencyKey string
	Status         Status
	AttemptCount   int
	MaxAttempts    int
	NextRetryAt    *time.Time
	ClaimedAt      *time.Time
	CreatedAt      time.Time
	ProcessedAt    *time.Time
	RemoteResponse *string
	ErrorMessage   *string
	ErrorDetail    *string
}

// IsTerminal reports whether no further automatic transition can happen.
func (e *OutboxEntry) IsTerminal() bool {
	switch e.Status {
	case StatusCompleted, StatusSkipped:
		return true
	case StatusFailed:
		return e.AttemptCount >= e.MaxAttempts
	default:
		return false
	}
}

// CanRetry reports whether the retry sweeper may move the entry back to pending at now.
func (e *OutboxEntry) CanRetry(now time.Time) bool {
	if e.Status != StatusFailed || e.AttemptCount >= e.MaxAttempts {
		return false
	}
	return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
}

// AttemptsRemaining returns how many deliveries may still be tried.
func (e *OutboxEntry) AttemptsRemaining() int {
	if remaining := e.MaxAttempts - e.AttemptCount; remaining > 0 {
		return remaining
	}
	return 0
}
