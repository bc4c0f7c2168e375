package yahoo

import (
	"fmt"
)

// ErrorType is the category of a failed download.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeServer     ErrorType = "server"
	ErrorTypeClient     ErrorType = "client"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// FetchError is returned for every failed download. Ticker is the sheet form.
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Ticker     string
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	prefix := string(e.Type) + " error"
	if e.Ticker != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Ticker)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", prefix, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

func NewValidationError(format string, args ...any) *FetchError {
	return &FetchError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ClassifyHTTPError maps a non-2xx status to a FetchError.
func ClassifyHTTPError(statusCode int, body string) *FetchError {
	e := &FetchError{StatusCode: statusCode}
	switch {
	case statusCode == 429:
		e.Type, e.Retryable, e.Message = ErrorTypeRateLimit, true, "rate limit exceeded"
	case statusCode >= 500:
		e.Type, e.Retryable, e.Message = ErrorTypeServer, true, "server returned an error"
	case statusCode >= 400:
		e.Type, e.Message = ErrorTypeClient, fmt.Sprintf("client error: HTTP %d", statusCode)
	default:
		e.Type, e.Message = ErrorTypeUnknown, fmt.Sprintf("unexpected status code: %d", statusCode)
	}
	if body != "" {
		e.Message += ": " + body
	}
	return e
}
