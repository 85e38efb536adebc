package client

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit is left to the fetcher",
			errorClass: ErrorClassRateLimit,
			expected:   false,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
				Err:        ErrNotFound,
			},
			expected: "catalog client error (status 404): 404 Not Found: resource not found",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			expected: "catalog server error (status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	err := &APIError{StatusCode: 403, ErrorClass: ErrorClassClient, Err: ErrNotAuthorized}

	if !errors.Is(err, ErrNotAuthorized) {
		t.Error("errors.Is(err, ErrNotAuthorized) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true, want false")
	}
}

func TestThrottleError_IsThrottleSignal(t *testing.T) {
	var err error = &ThrottleError{Wait: 3 * time.Second, Resource: "playlists/p1/tracks"}

	sig, ok := pagination.AsThrottle(err)
	if !ok {
		t.Fatal("AsThrottle() = false, want true")
	}
	if sig.RetryAfter() != 3*time.Second {
		t.Errorf("RetryAfter() = %v, want 3s", sig.RetryAfter())
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ErrorClassRateLimit},
		{404, ErrorClassClient},
		{401, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"negative", "-3", 0},
		{"garbage", "soon", 0},
		{"http date", now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestResourceKind(t *testing.T) {
	tests := []struct {
		resource string
		want     string
	}{
		{"playlists/abc/tracks", "playlists/tracks"},
		{"users/u1/playlists", "users/playlists"},
		{"/users/u1/library", "users/library"},
		{"browse", "browse"},
	}

	for _, tt := range tests {
		if got := resourceKind(tt.resource); got != tt.want {
			t.Errorf("resourceKind(%q) = %q, want %q", tt.resource, got, tt.want)
		}
	}
}
