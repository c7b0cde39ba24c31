// Package errors defines the error types used throughout the snoo client.
package errors

import (
	"fmt"
	"time"
)

// ConfigError indicates a problem with the client configuration, such as a
// missing or contradictory credential combination. Configuration errors are
// fatal and never retried.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// ArgumentError indicates an invalid argument supplied by the caller, such as
// a negative fetch amount or a malformed username. Argument errors are
// raised synchronously, before any network call, and are never retried.
type ArgumentError struct {
	// Argument is the name of the offending argument
	Argument string
	// Message contains the detailed error message
	Message string
}

func (e *ArgumentError) Error() string {
	if e.Argument != "" {
		return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

// AuthError indicates an authentication failure against the token endpoint.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	msg := "auth error"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status code %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += fmt.Sprintf(", body: %q", e.Body)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(", err: %v", e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError indicates that the API quota is exhausted and the client is
// not configured to wait for the quota window to reset.
type RateLimitError struct {
	// ResetAt is when the quota window resets
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	wait := time.Until(e.ResetAt).Round(time.Millisecond)
	if wait > 0 {
		return fmt.Sprintf("ratelimit exceeded: quota resets in %s", wait)
	}
	return "ratelimit exceeded"
}

// APIError represents a non-2xx response from the reddit API.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Message is the error message from reddit, if any
	Message string
	// URL is the URL that was being accessed
	URL string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d", e.StatusCode)
}

// RequestError indicates a transport-level problem making an API request.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Err contains the underlying error
	Err error
}

func (e *RequestError) Error() string {
	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %v", e.Operation, e.URL, e.Err)
	}
	if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("request error: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError indicates a problem decoding an API response.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error { return e.Err }
