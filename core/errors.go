package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Request validation errors
	ErrUnsupportedKind  = errors.New("unsupported operation kind")
	ErrInvalidParameter = errors.New("invalid request parameter")

	// Policy and configuration errors
	ErrInvalidPolicy        = errors.New("invalid policy")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// State errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")

	// Emission errors
	ErrSinkUnavailable = errors.New("telemetry sink unavailable")
)

// OperationError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type OperationError struct {
	Op      string // Operation that failed (e.g., "simulator.Simulate")
	Kind    Kind   // Operation kind involved, if any
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *OperationError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.Kind != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "operation error"
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewUnsupportedKindError builds the error returned for requests whose
// kind is not in the supported set.
func NewUnsupportedKindError(op string, kind Kind) *OperationError {
	return &OperationError{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf("unknown operation kind %q", kind),
		Err:     ErrUnsupportedKind,
	}
}

// IsUnsupportedKind checks if an error represents an unknown operation kind
func IsUnsupportedKind(err error) bool {
	return errors.Is(err, ErrUnsupportedKind)
}

// IsValidationError checks if an error was caused by bad caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedKind) ||
		errors.Is(err, ErrInvalidParameter)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration) ||
		errors.Is(err, ErrInvalidPolicy)
}

// IsStateError checks if an error is related to invalid state transitions
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrNotStarted)
}

// HTTPStatus maps an error to the status code the dispatcher returns
// for it. Caller mistakes (unknown kinds, bad parameters) map to 400;
// everything else is a server-side problem. Simulated Failure outcomes
// never reach this function: they are data on a successful result.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
