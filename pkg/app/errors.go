package app

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents an HTTP error with a status code and message.
// Returned from a middleware, it decides the status of the error response;
// Expose controls whether Message is shown to the client and whether the
// default error handler stays quiet about it.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
	Expose     bool   // Safe to show Message to the client
	Err        error  // Optional underlying cause
}

// Error implements the error interface.
// It returns a string representation of the HTTP error in the format "status: message".
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the error maps to.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// Exposed reports whether the message is safe to show to clients.
func (e *HTTPError) Exposed() bool {
	return e.Expose
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
// Client errors (status < 500) are exposed; server errors are not.
// An empty message defaults to the standard status text.
func NewHTTPError(statusCode int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Expose:     statusCode < 500,
	}
}

// TransportError reports that the connection ended before the response was finalized.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport closed before the response was finalized"
	}
	return fmt.Sprintf("transport closed before the response was finalized: %v", e.Err)
}

// Unwrap returns the cause reported by the request context.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorStatus returns the status an error response for err would carry and
// whether its message is safe for clients. Errors that do not name a valid
// status map to 500.
func ErrorStatus(err error) (int, bool) {
	status := http.StatusInternalServerError
	var sc statusCoder
	if errors.As(err, &sc) {
		if s := sc.HTTPStatus(); http.StatusText(s) != "" {
			status = s
		}
	}
	var ex exposer
	expose := errors.As(err, &ex) && ex.Exposed()
	return status, expose
}

type statusCoder interface {
	HTTPStatus() int
}

type exposer interface {
	Exposed() bool
}
