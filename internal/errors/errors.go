// Package errors defines the typed error classes shared across the
// reconciliation pipeline and its callers.
package errors

import (
	"errors"
	"fmt"
)

// NotFoundError indicates the base catalog record is missing. This is the
// only hard failure in the hydration path.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book %s not found", e.ID)
}

// NewNotFoundError creates a NotFoundError for the given catalog id.
func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// IsNotFound reports whether err is a NotFoundError (even when wrapped).
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// SourceLookupError indicates a single bibliographic source lookup failed.
// Soft: callers log it and fall through to the next source in priority order.
type SourceLookupError struct {
	Source string
	Err    error
}

func (e *SourceLookupError) Error() string {
	return fmt.Sprintf("%s lookup failed: %v", e.Source, e.Err)
}

func (e *SourceLookupError) Unwrap() error {
	return e.Err
}

// NewSourceLookupError wraps err as a soft source lookup failure.
func NewSourceLookupError(source string, err error) *SourceLookupError {
	return &SourceLookupError{Source: source, Err: err}
}

// IsSourceLookup reports whether err is a SourceLookupError.
func IsSourceLookup(err error) bool {
	var sl *SourceLookupError
	return errors.As(err, &sl)
}

// DuplicateConflictError indicates a like insert hit a unique constraint.
// The like already exists server-side, so callers treat this as success
// with a known final state.
type DuplicateConflictError struct {
	Key string
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("like already exists for %s", e.Key)
}

// NewDuplicateConflictError creates a DuplicateConflictError for a canonical key.
func NewDuplicateConflictError(key string) *DuplicateConflictError {
	return &DuplicateConflictError{Key: key}
}

// IsDuplicateConflict reports whether err is a DuplicateConflictError.
func IsDuplicateConflict(err error) bool {
	var dc *DuplicateConflictError
	return errors.As(err, &dc)
}

// SystemicFailureError indicates a network-class enrichment failure that
// should trip the enrichment circuit breaker.
type SystemicFailureError struct {
	Err error
}

func (e *SystemicFailureError) Error() string {
	return fmt.Sprintf("enrichment backend unreachable: %v", e.Err)
}

func (e *SystemicFailureError) Unwrap() error {
	return e.Err
}

// NewSystemicFailureError wraps err as a systemic enrichment failure.
func NewSystemicFailureError(err error) *SystemicFailureError {
	return &SystemicFailureError{Err: err}
}

// IsSystemicFailure reports whether err is a SystemicFailureError.
func IsSystemicFailure(err error) bool {
	var sf *SystemicFailureError
	return errors.As(err, &sf)
}

// ValidationError indicates a malformed identifier. Soft: the offending
// field is skipped, the rest of the record is still usable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
