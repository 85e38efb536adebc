package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNotAuthorized is returned for 401 and 403 responses.
	ErrNotAuthorized = errors.New("access to resource not authorized")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttle responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a catalog API error with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ThrottleError is returned when the catalog answers 429. It carries the
// server's Retry-After hint and satisfies pagination.ThrottleSignal.
type ThrottleError struct {
	Wait     time.Duration
	Resource string
}

// Error implements the error interface.
func (e *ThrottleError) Error() string {
	return fmt.Sprintf("catalog throttled %s: retry after %v", e.Resource, e.Wait)
}

// RetryAfter returns the server-suggested wait.
func (e *ThrottleError) RetryAfter() time.Duration {
	return e.Wait
}

// shouldRetry determines if an error should be retried inside the client.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are permanent for this request
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// Throttling is surfaced to the fetcher, which retries whole batches
		return false
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
