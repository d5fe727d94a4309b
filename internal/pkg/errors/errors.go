// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package errors provides typed application errors with stable string codes.
// Codes travel through audit records and API surfaces, so they are part of
// the public contract and must not change casually.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeTimeout          = "TIMEOUT"
	CodeIntegrity        = "INTEGRITY_FAILURE"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeInternal         = "INTERNAL"
)

// AppError is the application error type. It carries a stable code, a
// human-readable message, an optional wrapped cause, an HTTP status for the
// (out-of-scope) API layer, and optional structured details.
type AppError struct {
	Code       string
	Message    string
	Err        error
	HTTPStatus int
	Details    map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a details map and returns the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithDetail attaches a single detail key/value and returns the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus overrides the HTTP status and returns the error.
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// ============================================================================
// Constructors
// ============================================================================

// New creates a new AppError with the given code and message.
func New(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithStatus creates a new AppError with an explicit HTTP status.
func NewWithStatus(code, message string, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Err:        err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WrapWithStatus wraps an existing error with an explicit HTTP status.
func WrapWithStatus(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Err:        err,
		HTTPStatus: status,
	}
}

// ============================================================================
// Domain helpers
// ============================================================================

// NotFound creates a NOT_FOUND error for a named resource.
func NotFound(resource string) *AppError {
	return NewWithStatus(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// AlreadyExists creates a CONFLICT error for a named resource.
func AlreadyExists(resource string) *AppError {
	return NewWithStatus(CodeConflict, fmt.Sprintf("%s already exists", resource), http.StatusConflict)
}

// InvalidInput creates a BAD_REQUEST error.
func InvalidInput(message string) *AppError {
	return NewWithStatus(CodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an UNAUTHORIZED error.
func Unauthorized(message string) *AppError {
	return NewWithStatus(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden creates a FORBIDDEN error.
func Forbidden(message string) *AppError {
	return NewWithStatus(CodeForbidden, message, http.StatusForbidden)
}

// SessionExpired creates a SESSION_EXPIRED error.
func SessionExpired() *AppError {
	return NewWithStatus(CodeSessionExpired, "session has expired", http.StatusUnauthorized)
}

// Integrity creates an INTEGRITY_FAILURE error.
func Integrity(message string) *AppError {
	return New(CodeIntegrity, message)
}

// Internal creates an INTERNAL error.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// ValidationFailed creates a VALIDATION_FAILED error with per-field details.
func ValidationFailed(fields map[string]interface{}) *AppError {
	return NewWithStatus(CodeValidationFailed, "validation failed", http.StatusBadRequest).
		WithDetails(fields)
}

// ============================================================================
// Inspection
// ============================================================================

// AsAppError extracts an *AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// GetCode returns the code of an error, or CodeInternal for untyped errors.
func GetCode(err error) string {
	if ae, ok := AsAppError(err); ok {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsForbidden reports whether err is a FORBIDDEN error.
func IsForbidden(err error) bool {
	return IsCode(err, CodeForbidden)
}

// IsUnauthorized reports whether err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool {
	return IsCode(err, CodeUnauthorized)
}
