package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a DomainError for callers and transport adapters.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeVehicleUnavailable ErrorCode = "VEHICLE_UNAVAILABLE"
	CodePaymentDeclined    ErrorCode = "PAYMENT_DECLINED"
	CodeCaptureFailed      ErrorCode = "CAPTURE_FAILED"
	CodeReleaseFailed      ErrorCode = "RELEASE_FAILED"
	CodeRefundFailed       ErrorCode = "REFUND_FAILED"
	CodePaymentPending     ErrorCode = "PAYMENT_PENDING"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeInvalidState       ErrorCode = "INVALID_STATE"
	CodeStaleState         ErrorCode = "STALE_STATE"
	CodePersistence        ErrorCode = "PERSISTENCE"
)

// DomainError is the typed error returned across service boundaries.
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may re-fetch and retry the same intent.
func (e *DomainError) IsRetryable() bool {
	switch e.Code {
	case CodeStaleState, CodePaymentPending, CodePersistence:
		return true
	}
	return false
}

// WithDetail attaches a detail value and returns the same error.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: msg}
}

// NewNotFoundError creates a not-found error for the given entity and identifier.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError creates a conflict error.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: msg}
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(msg string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: msg}
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(msg string) *DomainError {
	return &DomainError{Code: CodeUnauthorized, Message: msg}
}

// NewVehicleUnavailableError creates an error for a vehicle that cannot be booked for a range.
func NewVehicleUnavailableError(vehicleID string) *DomainError {
	return &DomainError{
		Code:    CodeVehicleUnavailable,
		Message: fmt.Sprintf("vehicle %s is unavailable for the requested dates", vehicleID),
	}
}

// NewInvalidTransitionError creates an error for an edge that is not allowed.
func NewInvalidTransitionError(from, action string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("action %q is not allowed from status %q", action, from),
	}
}

// NewInvalidStateError creates an error for an operation on an object in the wrong state.
func NewInvalidStateError(current, target string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("cannot move from %q to %q", current, target),
	}
}

// NewStaleStateError creates an optimistic concurrency error.
func NewStaleStateError(msg string) *DomainError {
	return &DomainError{Code: CodeStaleState, Message: msg}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(msg string, err error) *DomainError {
	return &DomainError{Code: CodePersistence, Message: msg, Err: err}
}

// NewPaymentError wraps a payment failure under the given code.
func NewPaymentError(code ErrorCode, msg string, err error) *DomainError {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AsDomainError extracts a DomainError from an error chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code ErrorCode) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}
