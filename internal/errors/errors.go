package errors

import "fmt"

// ErrorCode represents an Arbiter error code.
type ErrorCode string

const (
	ErrConfiguration       ErrorCode = "CONFIGURATION"        // 500 (deployment defect, fatal)
	ErrAuthRejected        ErrorCode = "AUTH_REJECTED"        // 401
	ErrCapabilityViolation ErrorCode = "CAPABILITY_VIOLATION" // 403
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// ArbiterError represents a structured error with code, status, and details.
type ArbiterError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ArbiterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfiguration creates a 500 error for deployment defects: a malformed
// stored digest, a missing prompt section, an unknown mode. These surface to
// the operator immediately and are never retried.
func NewConfiguration(msg string) *ArbiterError {
	return &ArbiterError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: msg,
	}
}

// NewAuthRejected creates a 401 error for a failed elevation attempt.
// The message is fixed: callers never learn why verification failed.
func NewAuthRejected() *ArbiterError {
	return &ArbiterError{
		Code:    ErrAuthRejected,
		Status:  401,
		Message: "authentication failed; elevation rejected",
	}
}

// NewCapabilityViolation creates a 403 error for a capability requested
// outside the current mode's allowed list.
func NewCapabilityViolation(capability, mode string, allowed []string) *ArbiterError {
	return &ArbiterError{
		Code:    ErrCapabilityViolation,
		Status:  403,
		Message: fmt.Sprintf("capability %q is not permitted in %s mode", capability, mode),
		Details: map[string]any{
			"capability": capability,
			"mode":       mode,
			"allowed":    allowed,
		},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ArbiterError {
	return &ArbiterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record or file.
func NewNotFound(identifier string) *ArbiterError {
	return &ArbiterError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ArbiterError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ArbiterError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is an ArbiterError with the given code.
func Is(err error, code ErrorCode) bool {
	if aErr, ok := err.(*ArbiterError); ok {
		return aErr.Code == code
	}
	return false
}
