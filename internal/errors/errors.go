package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound           = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists      = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation         = new(ErrCodeValidation, "validation error")
	ErrPreconditionFailed = new(ErrCodePreconditionFailed, "precondition failed")
	ErrUnauthorized       = new(ErrCodeUnauthorized, "unauthorized")
	ErrUpstream           = new(ErrCodeUpstream, "upstream failure")
	ErrDatabase           = new(ErrCodeDatabase, "database error")
	ErrSystem             = new(ErrCodeSystemError, "system error")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:           http.StatusNotFound,
		ErrAlreadyExists:      http.StatusConflict,
		ErrValidation:         http.StatusBadRequest,
		ErrPreconditionFailed: http.StatusConflict,
		ErrUnauthorized:       http.StatusUnauthorized,
		ErrUpstream:           http.StatusBadGateway,
		ErrDatabase:           http.StatusInternalServerError,
		ErrSystem:             http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound           = "not_found"
	ErrCodeAlreadyExists      = "conflict"
	ErrCodeValidation         = "invalid_input"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeUpstream           = "upstream_failure"
	ErrCodeDatabase           = "database_error"
	ErrCodeSystemError        = "internal"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is a conflict error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPreconditionFailed checks if an error is a precondition error
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUpstream checks if an error is an upstream provider failure
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// ErrCode extracts the machine readable code from an error chain
func ErrCode(err error) string {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Code
	}
	for sentinel := range statusCodeMap {
		if errors.Is(err, sentinel) {
			return sentinel.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
