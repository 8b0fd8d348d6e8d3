// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/marketsync/internal/validation"
)

// MaxDispatchBatchSize caps the number of entries a single manual dispatch may claim.
const MaxDispatchBatchSize = 1000

// MaxSweepLimit caps the number of entries a single manual sweep may requeue.
const MaxSweepLimit = 10000

// DispatchRequest contains the parameters of a manual dispatch run.
// A zero BatchSize means the configured default.
type DispatchRequest struct {
	BatchSize int `json:"batch_size"`
}

// Validate checks if the dispatch request is valid.
func (r *DispatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BatchSize, validation.Min(0), validation.Max(MaxDispatchBatchSize)),
	)
}

// SweepRequest contains the parameters of a manual retry sweep.
// A zero Limit means the configured default.
type SweepRequest struct {
	Limit int `json:"limit"`
}

// Validate checks if the sweep request is valid.
func (r *SweepRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Limit, validation.Min(0), validation.Max(MaxSweepLimit)),
	)
}

// SkipRequest contains the reason recorded when an operator abandons a pending entry.
type SkipRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the skip request is valid.
func (r *SkipRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, customValidation.NoWhitespace, validation.Length(0, 500)),
	)
}
