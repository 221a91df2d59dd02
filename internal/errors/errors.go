// Package errors defines the service error type shared by middleware and
// HTTP handlers for consistent status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service error.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeInternal     ErrorCode = "INTERNAL"
)

// ServiceError carries an error code, an HTTP status and optional details.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// InvalidInput reports a rejected request payload.
func InvalidInput(message string) *ServiceError {
	return newError(CodeInvalidInput, http.StatusBadRequest, message, nil)
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken reports a token that failed validation.
func InvalidToken(err error) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, "Invalid token", err)
}

// Forbidden reports an authenticated caller lacking the required role.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound reports a missing resource.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict reports a state conflict such as a duplicate resource.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}
