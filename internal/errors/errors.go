// Package errors holds the error definitions shared by all tremor packages.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Exit codes for the command line
// - Error wrapping utilities

package errors

import (
	"context"
	"errors"
	"fmt"
)

// ============================================================================
// Exit codes returned by cmd/tremor
// ============================================================================

const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitInvalid    = 2
	ExitNotFound   = 3
	ExitCancelled  = 4
	ExitInputShape = 5
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Not found errors
	ErrNotFound         = errors.New("not found")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrTaxonomyNotFound = errors.New("taxonomy not found")
	ErrSiteNotFound     = errors.New("site not found")
	ErrIMTNotFound      = errors.New("intensity measure type not found")
	ErrGSIMNotFound     = errors.New("gsim not found")

	// Validation errors
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidIMT         = errors.New("invalid intensity measure type")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingField       = errors.New("missing required field")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrInvalidFragility   = errors.New("invalid fragility function")
	ErrUnknownTaxonomy    = errors.New("taxonomy has no fragility function")
	ErrDuplicateWorkflow  = errors.New("taxonomy contributes to more than one IMT")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrUnsupportedVersion = errors.New("unsupported version")

	// Shape errors
	ErrEmptyInput     = errors.New("empty input")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrIncomplete     = errors.New("incomplete spool")

	// Internal errors
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrWriterClosed = errors.New("writer is closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrTaxonomyNotFound) ||
		errors.Is(err, ErrSiteNotFound) ||
		errors.Is(err, ErrIMTNotFound) ||
		errors.Is(err, ErrGSIMNotFound)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidIMT) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInvalidFragility) ||
		errors.Is(err, ErrUnknownTaxonomy) ||
		errors.Is(err, ErrDuplicateWorkflow) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnsupportedVersion)
}

// IsShape returns true if err reports inconsistent array dimensions.
func IsShape(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrIncomplete)
}

// ExitCode maps an error to the process exit code used by cmd/tremor.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitCancelled
	case IsValidation(err):
		return ExitInvalid
	case IsNotFound(err):
		return ExitNotFound
	case IsShape(err):
		return ExitInputShape
	default:
		return ExitInternal
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewDuplicate creates a duplicate-entry error with context.
func NewDuplicate(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrDuplicate)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// NewShapeMismatch reports two array shapes that should agree.
func NewShapeMismatch(what string, wantRows, wantCols, gotRows, gotCols int) error {
	return fmt.Errorf("%s: expected %dx%d, got %dx%d: %w",
		what, wantRows, wantCols, gotRows, gotCols, ErrShapeMismatch)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns all collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
