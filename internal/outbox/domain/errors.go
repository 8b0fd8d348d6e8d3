package domain

import (
	"github.com/allisson/marketsync/internal/errors"
)

// Outbox domain errors.
var (
	// ErrEntryNotFound indicates the requested outbox entry does not exist.
	ErrEntryNotFound = errors.Wrap(errors.ErrNotFound, "outbox entry not found")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid outbox status transition")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.Wrap(errors.ErrInvalidInput, "invalid outbox status")

	// ErrInvalidOperation indicates an unknown operation value.
	ErrInvalidOperation = errors.Wrap(errors.ErrInvalidInput, "invalid outbox operation")

	// ErrInvalidPayload indicates a payload that cannot be stored or transformed.
	ErrInvalidPayload = errors.Wrap(errors.ErrInvalidInput, "invalid outbox payload")

	// ErrCaptureNotPersisted indicates a capture write reported success without storing a row.
	// It must abort the originating transaction.
	ErrCaptureNotPersisted = errors.New("outbox capture was not persisted")

	// ErrMappingNotFound indicates the transformer has no remote mapping for a table or field.
	ErrMappingNotFound = errors.Wrap(errors.ErrMisconfigured, "remote field mapping not found")

	// ErrEntryNotRequeueable indicates an operator requeue of an entry that is not a terminal failure.
	ErrEntryNotRequeueable = errors.Wrap(errors.ErrConflict, "outbox entry is not a terminal failure")
)
