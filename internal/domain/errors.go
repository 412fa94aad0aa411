// Package domain provides the canonical types and error taxonomy shared by
// the front door, the bridge, and the ledger.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or rejected request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates a credential failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRateLimit indicates upstream resource exhaustion.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeServer indicates a transport or internal failure.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	// ErrorCodeInvalidCredential marks an empty token or missing machine id
	// detected before any network activity.
	ErrorCodeInvalidCredential ErrorCode = "invalid_credential"

	// ErrorCodeUpstreamRateLimited marks a parsed error frame or JSON error
	// body indicating exhaustion.
	ErrorCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// ErrorCodeUpstreamRejected marks any other upstream error frame/body;
	// the vendor's message is carried verbatim where available.
	ErrorCodeUpstreamRejected ErrorCode = "upstream_rejected"

	// ErrorCodeTransportFailure marks a connection-level failure (DNS, TLS,
	// reset, fallback-path failure).
	ErrorCodeTransportFailure ErrorCode = "transport_failure"

	// ErrorCodeModelNotFound marks an unknown model id.
	ErrorCodeModelNotFound ErrorCode = "model_not_found"

	// ErrorCodeNoAccounts marks an exhausted account pool (every account
	// disabled or cooling down).
	ErrorCodeNoAccounts ErrorCode = "no_accounts_available"
)

// APIError represents a canonical error that the bridge returns and the front
// door translates into the OpenAI error envelope.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Param is the parameter that caused the error (if applicable)
	Param string `json:"param,omitempty"`

	// StatusCode is the suggested HTTP status code
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithParam adds a parameter name to the error.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Convenience constructors for the bridge taxonomy

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrInvalidCredential creates a credential validation error. It fails the
// call before any network activity.
func ErrInvalidCredential(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message).
		WithCode(ErrorCodeInvalidCredential)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrUpstreamRateLimited creates a rate limit error (429-equivalent).
func ErrUpstreamRateLimited(message string) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message).
		WithCode(ErrorCodeUpstreamRateLimited)
}

// ErrUpstreamRejected creates a client-request class error (400-equivalent)
// carrying the upstream message.
func ErrUpstreamRejected(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message).
		WithCode(ErrorCodeUpstreamRejected)
}

// ErrTransportFailure creates a connection class error (500-equivalent).
func ErrTransportFailure(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message).
		WithCode(ErrorCodeTransportFailure)
}

// ErrNoAccounts creates an exhausted account pool error.
func ErrNoAccounts(message string) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message).
		WithCode(ErrorCodeNoAccounts)
}
