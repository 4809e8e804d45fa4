// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Numeric error codes used for CLI exit status and log fields
// - Sentinel errors for all query engine failure conditions
// - Error category checking functions
// - ErrorToCode mapping
// - Error wrapping utilities

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error codes
// ============================================================================

const (
	CodeUnknown          int32 = 1
	CodeInvalidRequest   int32 = 2
	CodeNotFound         int32 = 3
	CodeInternal         int32 = 4
	CodeMissingParameter int32 = 5
	CodeInvalidDateCode  int32 = 6
	CodeCorruptFile      int32 = 7
	CodeTimeout          int32 = 8
	CodeSuperseded       int32 = 9
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeNotFound:
		return "DatasetNotFound"
	case CodeInternal:
		return "Internal"
	case CodeMissingParameter:
		return "MissingParameter"
	case CodeInvalidDateCode:
		return "InvalidDateCode"
	case CodeCorruptFile:
		return "CorruptFile"
	case CodeTimeout:
		return "ScanTimeout"
	case CodeSuperseded:
		return "Superseded"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Lookup errors
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrMappingNotFound = errors.New("store mapping not found")

	// Caller contract errors
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Data errors, scoped to a single partition file
	ErrInvalidDateCode = errors.New("invalid date code")
	ErrCorruptFile     = errors.New("corrupt partition file")

	// Execution errors
	ErrScanTimeout = errors.New("scan timeout")
	ErrSuperseded  = errors.New("query superseded by a newer request")
	ErrInternal    = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsNotFound returns true if err reports a broken lookup rather than an empty result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDatasetNotFound) ||
		errors.Is(err, ErrMappingNotFound)
}

// IsValidation returns true if err is a caller contract violation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsDataError returns true if err was caused by the content of a partition file.
// These are the errors that skip-and-continue mode tolerates.
func IsDataError(err error) bool {
	return errors.Is(err, ErrInvalidDateCode) ||
		errors.Is(err, ErrCorruptFile)
}

// IsFatal returns true if err always aborts the query invocation.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDatasetNotFound) ||
		errors.Is(err, ErrScanTimeout)
}

// ============================================================================
// Error to code mapping
// ============================================================================

// ErrorToCode maps a sentinel error to its numeric code.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case Is(err, ErrMissingParameter):
		return CodeMissingParameter
	case IsNotFound(err):
		return CodeNotFound
	case Is(err, ErrInvalidConfig):
		return CodeInvalidRequest
	case Is(err, ErrInvalidDateCode):
		return CodeInvalidDateCode
	case Is(err, ErrCorruptFile):
		return CodeCorruptFile
	case Is(err, ErrScanTimeout):
		return CodeTimeout
	case Is(err, ErrSuperseded):
		return CodeSuperseded
	default:
		return CodeInternal
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

// NewDatasetNotFound creates a dataset-not-found error with the reason the lookup failed.
func NewDatasetNotFound(name, reason string) error {
	return fmt.Errorf("dataset '%s': %s: %w", name, reason, ErrDatasetNotFound)
}

// NewMissingParameter creates a missing parameter error.
func NewMissingParameter(name string) error {
	return fmt.Errorf("%s: %w", name, ErrMissingParameter)
}

// NewInvalidDateCode creates an invalid date code error.
func NewInvalidDateCode(code, reason string) error {
	return fmt.Errorf("date code %q: %s: %w", code, reason, ErrInvalidDateCode)
}

// NewCorruptFile creates a corrupt file error for the given partition path.
// The cause is kept in the chain so callers can still inspect it.
func NewCorruptFile(path string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", path, ErrCorruptFile)
	}
	return fmt.Errorf("%s: %w: %w", path, ErrCorruptFile, cause)
}

// NewScanTimeout creates a scan timeout error.
func NewScanTimeout(dataset string, files int, cause error) error {
	return fmt.Errorf("dataset '%s' (%d files): %w: %w", dataset, files, ErrScanTimeout, cause)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
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

// AddMissing adds a missing parameter error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingParameter(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
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
	if !v.HasErrors() {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
