package compare

import (
	"context"
	"errors"

	"github.com/Sternrassler/playlist-overlap/pkg/client"
	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/overlap"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
	"github.com/Sternrassler/playlist-overlap/pkg/scope"
)

// Errors returned by Service operations. Match them with errors.Is.
var (
	ErrNotAuthorized       = scope.ErrNotAuthorized
	ErrResourceUnavailable = pagination.ErrResourceUnavailable
	ErrMalformedResponse   = pagination.ErrMalformedResponse
	ErrThrottleExhausted   = pagination.ErrThrottleExhausted
	ErrEmptyDenominator    = overlap.ErrEmptyDenominator
	ErrInvalidResource     = collection.ErrInvalidResource

	// ErrTooFewResources is returned when fewer than two resources are given.
	ErrTooFewResources = errors.New("at least two resources are required")

	// ErrInvalidMode is returned for an unknown comparison mode.
	ErrInvalidMode = errors.New("invalid comparison mode")
)

// ErrorKind is a stable name for the class of a failed operation.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindNotAuthorized       ErrorKind = "not_authorized"
	KindResourceUnavailable ErrorKind = "resource_unavailable"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindThrottleExhausted   ErrorKind = "throttle_exhausted"
	KindEmptyDenominator    ErrorKind = "empty_denominator"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

// Kind classifies err. A catalog 401/403 means access to that resource was
// revoked and counts as unavailable; only the scope gate yields
// KindNotAuthorized.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, ErrResourceUnavailable),
		errors.Is(err, client.ErrNotFound),
		errors.Is(err, client.ErrNotAuthorized):
		return KindResourceUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrThrottleExhausted):
		return KindThrottleExhausted
	case errors.Is(err, ErrEmptyDenominator):
		return KindEmptyDenominator
	case errors.Is(err, ErrTooFewResources),
		errors.Is(err, ErrInvalidMode),
		errors.Is(err, ErrInvalidResource):
		return KindInvalidRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}

// Hint returns a message for the person who issued the command.
func Hint(err error) string {
	switch Kind(err) {
	case KindNone:
		return ""
	case KindNotAuthorized:
		return "User has the wrong scope. Re-authenticate using the setup command."
	case KindResourceUnavailable:
		return "A playlist could not be read. Check the link and that it is shared with you."
	case KindMalformedResponse:
		return "The music service sent an unexpected response. Try again later."
	case KindThrottleExhausted:
		return "The music service is rate limiting requests. Try again in a few minutes."
	case KindEmptyDenominator:
		return "There is nothing to compare: every collection is empty."
	case KindInvalidRequest:
		switch {
		case errors.Is(err, ErrTooFewResources):
			return "Give at least two users or playlists to compare."
		case errors.Is(err, ErrInvalidMode):
			return "Mode must be exact or consensus."
		default:
			return "Could not read a playlist id from the link."
		}
	case KindCancelled:
		return "The comparison took too long and was cancelled."
	default:
		return "Something went wrong. Try again later."
	}
}
