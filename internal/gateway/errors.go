// Package gateway defines typed errors for the admission pipeline.
package gateway

import "errors"

// ErrorCode represents a typed error code.
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	CodeUpstreamTimeout   ErrorCode = "UPSTREAM_TIMEOUT"
	CodeUpstreamTransient ErrorCode = "UPSTREAM_TRANSIENT"
	CodeUpstreamPermanent ErrorCode = "UPSTREAM_PERMANENT"
)

// AppError is a typed application error.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the error message.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors that carry the same code.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// Wrap creates a new AppError around err.
func Wrap(code ErrorCode, msg string, err error) error {
	return &AppError{Code: code, Message: msg, Err: err}
}

// CodeOf returns the ErrorCode for an error.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ErrInvalidInput indicates validation failures.
var ErrInvalidInput = &AppError{Code: CodeInvalidInput, Message: "invalid input"}

// ErrStoreUnavailable indicates the counter store could not be reached.
var ErrStoreUnavailable = &AppError{Code: CodeStoreUnavailable, Message: "counter store unavailable"}

// ErrRateLimited indicates the limiter rejected the request.
var ErrRateLimited = &AppError{Code: CodeRateLimited, Message: "rate limit exceeded"}

// ErrCircuitOpen indicates the breaker rejected the call without invoking it.
var ErrCircuitOpen = &AppError{Code: CodeCircuitOpen, Message: "circuit open"}

// ErrUpstreamTimeout indicates an attempt exceeded its deadline.
var ErrUpstreamTimeout = &AppError{Code: CodeUpstreamTimeout, Message: "upstream timeout"}

// ErrUpstreamTransient indicates a retryable upstream failure.
var ErrUpstreamTransient = &AppError{Code: CodeUpstreamTransient, Message: "upstream transient failure"}

// ErrUpstreamPermanent indicates a failure that must not be retried.
var ErrUpstreamPermanent = &AppError{Code: CodeUpstreamPermanent, Message: "upstream permanent failure"}
