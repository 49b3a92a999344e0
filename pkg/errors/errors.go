package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Provider family: raised at the scraping/transcription boundary
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeBadRequest  ErrorType = "bad_request"

	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeAmbiguity  ErrorType = "ambiguity"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error carries a type, an optional status code and the wrapped cause.
// RetryAfter is set from the provider's Retry-After header on rate limits.
type Error struct {
	Type       ErrorType
	Message    string
	Code       int
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Provider builds a provider-family error. Unknown types default to network.
func Provider(t ErrorType, code int, msg string, cause error) *Error {
	if !isProviderType(t) {
		t = ErrorTypeNetwork
	}
	return &Error{Type: t, Message: msg, Code: code, Err: cause}
}

// FromStatus maps a non-success HTTP status onto the provider family.
// It returns nil for 2xx and 3xx codes.
func FromStatus(code int, msg string) *Error {
	var t ErrorType
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		t = ErrorTypeAuth
	case code == http.StatusNotFound:
		t = ErrorTypeNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		t = ErrorTypeTimeout
	case code == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case code >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeBadRequest
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &Error{Type: t, Message: msg, Code: code}
}

// Validation marks a single raw record that cannot be normalized
func Validation(msg string) *Error {
	return &Error{Type: ErrorTypeValidation, Message: msg}
}

// Storage wraps a connection or transaction failure
func Storage(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: msg, Err: cause}
}

// Ambiguity is the non-fatal reconciliation warning
func Ambiguity(msg string) *Error {
	return &Error{Type: ErrorTypeAmbiguity, Message: msg}
}

// TypeOf returns the type of the first *Error in the chain, or unknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsProvider reports whether err belongs to the provider family
func IsProvider(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && isProviderType(e.Type)
}

func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

func IsStorage(err error) bool {
	return TypeOf(err) == ErrorTypeStorage
}

// IsRetryableError classifies an arbitrary error for the retry loop
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return IsRetryable(e.Type)
	}
	// Unclassified errors (including context cancellation) are not retried
	return false
}

func isProviderType(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeAuth, ErrorTypeParsing,
		ErrorTypeNotFound, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeBadRequest:
		return true
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeBadRequest:
		return false
	default:
		return false
	}
}
