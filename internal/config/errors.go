package config

import "errors"

// Validation errors returned by Config.Validate. Match them with errors.Is.
var (
	// ErrMissingBaseURL is returned when no catalog base URL is configured.
	ErrMissingBaseURL = errors.New("invalid catalog config: base_url is required")

	// ErrMissingUserAgent is returned when the catalog user agent is empty.
	ErrMissingUserAgent = errors.New("invalid catalog config: user_agent is required")

	// ErrInvalidRequestRate is returned when requests_per_second or burst is not positive.
	ErrInvalidRequestRate = errors.New("invalid catalog config: requests_per_second and burst must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPageSize is returned when a page size is outside 1..100.
	ErrInvalidPageSize = errors.New("invalid page size: must be between 1 and 100")

	// ErrInvalidConcurrency is returned when a concurrency bound is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBackoff is returned when the backoff bounds are inconsistent.
	ErrInvalidBackoff = errors.New("invalid backoff: initial must be positive and not exceed max")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn or error")
)
