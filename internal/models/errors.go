package models

import (
	"errors"
	"fmt"
)

// Validation error variables shared across modules.
var (
	ErrInvalidUserHandle    = errors.New("user handle must be non-zero")
	ErrInvalidPersona       = errors.New("invalid persona id")
	ErrInvalidStage         = errors.New("invalid interview stage")
	ErrInvalidQuestionDepth = errors.New("question depth out of range")
	ErrInvalidEngagement    = errors.New("invalid engagement level")
	ErrInvalidCompleteness  = errors.New("stage completeness out of range")
	ErrSessionNotFound      = errors.New("session not found")
	ErrArchiveNotFound      = errors.New("archived session not found")
)

// Soft-error tags attached to turns that degrade instead of failing.
const (
	// TagResponseParseFailed marks a turn served from the deterministic
	// contract fallback after the model reply could not be parsed.
	TagResponseParseFailed = "RESPONSE_PARSE_FAILED"
	// TagSessionStoreError marks a turn whose session mutation was not
	// durably committed.
	TagSessionStoreError = "SESSION_STORE_ERROR"
	// TagGatewayFatal marks a turn that failed on a non-retryable gateway error.
	TagGatewayFatal = "GATEWAY_FATAL"
	// TagGatewayRetryExhausted marks a turn that failed after exhausting retries.
	TagGatewayRetryExhausted = "GATEWAY_RETRY_EXHAUSTED"
)

// ErrorType classifies gateway failures for retry decisions and metrics.
type ErrorType int8

const (
	// ErrorTypeTransient covers timeouts, 5xx responses, and connection failures.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeRateLimit covers 429 and quota errors; retried with backoff.
	ErrorTypeRateLimit
	// ErrorTypeAuth covers 401/403; never retried.
	ErrorTypeAuth
	// ErrorTypeBadRequest covers malformed requests (400); never retried.
	ErrorTypeBadRequest
	// ErrorTypeRetryExhausted marks a transient failure that persisted through
	// every allowed attempt.
	ErrorTypeRetryExhausted
	// ErrorTypeUnknown is the default for unclassified errors; not retried.
	ErrorTypeUnknown
)

// String returns the metrics-facing name of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeRetryExhausted:
		return "retry_exhausted"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Retryable reports whether another attempt may succeed.
func (et ErrorType) Retryable() bool {
	return et == ErrorTypeTransient || et == ErrorTypeRateLimit
}

// Fatal reports whether the failure is non-retryable configuration or
// authentication trouble that must surface to the operator.
func (et ErrorType) Fatal() bool {
	return et == ErrorTypeAuth || et == ErrorTypeBadRequest
}

// GatewayError is a classified failure from the LLM gateway.
type GatewayError struct {
	Type     ErrorType
	Message  string
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("gateway %s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// NewGatewayError creates a classified gateway error.
func NewGatewayError(t ErrorType, message string, cause error) *GatewayError {
	return &GatewayError{Type: t, Message: message, Cause: cause}
}

// NewRetryExhaustedError marks a transient failure that survived every attempt.
func NewRetryExhaustedError(attempts int, cause error) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeRetryExhausted,
		Message:  fmt.Sprintf("retries exhausted after %d attempts", attempts),
		Attempts: attempts,
		Cause:    cause,
	}
}
