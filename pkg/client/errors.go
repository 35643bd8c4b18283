package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is wrapped into fatal errors raised after the retry budget of a URL is spent.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass represents a classification of failed fetch attempts.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx HTTP responses.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassMalformed represents bodies that are not a valid feed document.
	ErrorClassMalformed ErrorClass = "malformed"
)

// TransportError is a connection or timeout level failure. It always aborts a run.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("KOS %s error: %s: %v", ErrorClassNetwork, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError represents a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("KOS %s error (status %d): %s: %s",
		ErrorClassStatus, e.StatusCode, e.URL, e.Message)
}

// MalformedPayloadError represents a body that could not be parsed as a feed document.
type MalformedPayloadError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("KOS %s payload: %s: %v", ErrorClassMalformed, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// Classify returns the ErrorClass of err, or "" when err is not one of the client errors.
func Classify(err error) ErrorClass {
	var transportErr *TransportError
	var statusErr *HTTPStatusError
	var malformedErr *MalformedPayloadError

	switch {
	case errors.As(err, &transportErr):
		return ErrorClassNetwork
	case errors.As(err, &statusErr):
		return ErrorClassStatus
	case errors.As(err, &malformedErr):
		return ErrorClassMalformed
	default:
		return ""
	}
}

// IsFatal reports whether an error of the given class aborts a run once the
// retry budget of its URL is spent. Status errors only drop the page.
func IsFatal(class ErrorClass) bool {
	switch class {
	case ErrorClassNetwork:
		return true
	case ErrorClassMalformed:
		return true
	case ErrorClassStatus:
		return false
	default:
		return false
	}
}
