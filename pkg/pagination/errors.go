package pagination

import "errors"

// Errors returned by FetchAll.
var (
	// ErrResourceUnavailable is returned when the first page of a resource
	// cannot be fetched (not found, access revoked). It is never retried.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrMalformedResponse is returned when a page does not match the
	// expected shape. It is never retried.
	ErrMalformedResponse = errors.New("malformed page response")

	// ErrThrottleExhausted is returned when a batch stays throttled past
	// Config.MaxThrottleRetries.
	ErrThrottleExhausted = errors.New("throttle retries exhausted")
)
