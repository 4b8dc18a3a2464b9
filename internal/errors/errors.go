package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Willow error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrUnauthenticated    ErrorCode = "UNAUTHENTICATED"     // 401
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrNoProfileSelected  ErrorCode = "NO_PROFILE_SELECTED" // 409
	ErrInvariantViolation ErrorCode = "INVARIANT_VIOLATION" // 409
	ErrInternal           ErrorCode = "INTERNAL"            // 500
	ErrStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"   // 503
	ErrPartiallyCommitted ErrorCode = "PARTIALLY_COMMITTED" // 503
)

// WillowError represents a structured error with code, status, and details.
type WillowError struct {
	Code      ErrorCode
	Status    int
	Message   string
	Details   map[string]any
	Retryable bool

	cause error
}

// Error implements the error interface.
func (e *WillowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying adapter error, if any.
func (e *WillowError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *WillowError {
	return &WillowError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidOption creates a 400 error for a value outside its catalog.
func NewInvalidOption(field, value string, allowed []string) *WillowError {
	return &WillowError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: fmt.Sprintf("%s %q is not a valid option", field, value),
		Details: map[string]any{"field": field, "value": value, "allowed": allowed},
	}
}

// NewUnauthenticated creates a 401 error for calls made without a user identity.
func NewUnauthenticated() *WillowError {
	return &WillowError{
		Code:    ErrUnauthenticated,
		Status:  401,
		Message: "no user identity",
	}
}

// NewNotFound creates a 404 error for a missing entity.
func NewNotFound(entity, identifier string) *WillowError {
	return &WillowError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", entity, identifier),
		Details: map[string]any{"entity": entity, "identifier": identifier},
	}
}

// NewNoProfileSelected creates a 409 error when the session has no usable profile.
func NewNoProfileSelected() *WillowError {
	return &WillowError{
		Code:    ErrNoProfileSelected,
		Status:  409,
		Message: "no profile selected; select a profile first",
	}
}

// NewInvariantViolation creates a 409 error describing a single-active violation.
func NewInvariantViolation(profileID string, activeCount int) *WillowError {
	return &WillowError{
		Code:    ErrInvariantViolation,
		Status:  409,
		Message: fmt.Sprintf("profile %s has %d active avatar records", profileID, activeCount),
		Details: map[string]any{"profile_id": profileID, "active_count": activeCount},
	}
}

// NewStoreUnavailable creates a retryable 503 error for adapter failures.
// No state change is implied.
func NewStoreUnavailable(op string, cause error) *WillowError {
	msg := op
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", op, cause)
	}
	return &WillowError{
		Code:      ErrStoreUnavailable,
		Status:    503,
		Message:   msg,
		Details:   map[string]any{"op": op},
		Retryable: true,
		cause:     cause,
	}
}

// NewPartiallyCommitted creates a 503 error for a swap whose deactivation
// succeeded but whose insert failed. The profile has no active record until
// the insert is retried.
func NewPartiallyCommitted(profileID string, deactivated int64, cause error) *WillowError {
	msg := fmt.Sprintf("avatar swap for profile %s partially committed: previous avatar deactivated, new avatar not saved", profileID)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &WillowError{
		Code:    ErrPartiallyCommitted,
		Status:  503,
		Message: msg,
		Details: map[string]any{
			"profile_id":  profileID,
			"deactivated": deactivated,
			"resume":      "insert",
		},
		Retryable: true,
		cause:     cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *WillowError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &WillowError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is a WillowError with the given code.
func Is(err error, code ErrorCode) bool {
	var wErr *WillowError
	if stderrors.As(err, &wErr) {
		return wErr.Code == code
	}
	return false
}

// IsRetryable reports whether err is a WillowError marked retryable.
func IsRetryable(err error) bool {
	var wErr *WillowError
	if stderrors.As(err, &wErr) {
		return wErr.Retryable
	}
	return false
}

// As converts err to a WillowError, wrapping unknown errors as INTERNAL.
func As(err error) *WillowError {
	if err == nil {
		return nil
	}
	var wErr *WillowError
	if stderrors.As(err, &wErr) {
		return wErr
	}
	return NewInternal(err)
}
