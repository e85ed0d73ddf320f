// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// BackendError describes a failed call to the complaints backend or to the
// geocoding provider.
type BackendError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Err        error
}

// ErrorType classifies backend errors.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeUnauthorized missing or rejected bearer token.
	ErrorTypeUnauthorized
	// ErrorTypeForbidden token lacks the required role.
	ErrorTypeForbidden
	// ErrorTypeRateLimit too many requests.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded provider quota exhausted.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout the request timed out.
	ErrorTypeTimeout
	// ErrorTypeNotFound nothing found.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest the request was malformed.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError connection failure or upstream unavailable.
	ErrorTypeNetworkError
	// ErrorTypeRejected the backend answered with success=false.
	ErrorTypeRejected
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeUnauthorized:   "unauthorized",
	ErrorTypeForbidden:      "forbidden",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeQuotaExceeded:  "quota_exceeded",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeInvalidRequest: "invalid_request",
	ErrorTypeNetworkError:   "network_error",
	ErrorTypeRejected:       "rejected",
}

func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func errorTypeOf(err error) (ErrorType, bool) {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Type, true
	}

	return ErrorTypeUnknown, false
}

// IsUnauthorizedError reports whether the bearer token was missing or rejected.
func IsUnauthorizedError(err error) bool {
	if t, ok := errorTypeOf(err); ok {
		return t == ErrorTypeUnauthorized
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "401")
}

// IsRateLimitError reports whether the error is due to rate limiting.
func IsRateLimitError(err error) bool {
	if t, ok := errorTypeOf(err); ok {
		return t == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether the provider quota is exhausted.
func IsQuotaExceededError(err error) bool {
	if t, ok := errorTypeOf(err); ok {
		return t == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether the error is a timeout.
func IsTimeoutError(err error) bool {
	if t, ok := errorTypeOf(err); ok {
		return t == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsRetryableError reports whether repeating the request may succeed.
func IsRetryableError(err error) bool {
	if t, ok := errorTypeOf(err); ok {
		return t == ErrorTypeRateLimit || t == ErrorTypeTimeout || t == ErrorTypeNetworkError
	}

	return IsRateLimitError(err) || IsTimeoutError(err)
}

// ClassifyHTTPError maps an HTTP status and the backend message to a BackendError.
func ClassifyHTTPError(statusCode int, message string) *BackendError {
	e := &BackendError{StatusCode: statusCode}

	switch statusCode {
	case http.StatusUnauthorized:
		e.Type, e.Message = ErrorTypeUnauthorized, "unauthorized"
	case http.StatusForbidden:
		e.Type, e.Message = ErrorTypeForbidden, "access denied"
	case http.StatusTooManyRequests:
		e.Type, e.Message = ErrorTypeRateLimit, "rate limit reached"
	case http.StatusBadRequest:
		e.Type, e.Message = ErrorTypeInvalidRequest, "invalid request"
	case http.StatusNotFound:
		e.Type, e.Message = ErrorTypeNotFound, "not found"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e.Type, e.Message = ErrorTypeTimeout, fmt.Sprintf("upstream timeout (status %d)", statusCode)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e.Type, e.Message = ErrorTypeNetworkError, fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		e.Type, e.Message = ErrorTypeUnknown, fmt.Sprintf("HTTP error %d", statusCode)
	}

	if message = strings.TrimSpace(message); message != "" {
		e.Message += ": " + message
	}

	return e
}
