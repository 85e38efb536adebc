package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/playlist-overlap/internal/testutil"
	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig(baseURL, "OverlapTest/1.0 (test@example.com)")
	cfg.Retry = fastRetry
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func numberedTracks(n int) []testutil.Track {
	tracks := make([]testutil.Track, n)
	for i := range tracks {
		tracks[i] = testutil.Track{
			ID:     fmt.Sprintf("t%03d", i),
			Name:   fmt.Sprintf("Song %d", i),
			Artist: "Artist",
		}
	}
	return tracks
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("http://catalog.local", "TestApp/1.0.0"),
			expectError: false,
		},
		{
			name:        "missing base url",
			config:      Config{UserAgent: "TestApp/1.0.0"},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "empty user agent",
			config:      Config{BaseURL: "http://catalog.local"},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("Expected client, got nil")
			}
		})
	}
}

func TestFetchPage_Tracks(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1",
		testutil.Track{ID: "a", Name: "Alpha", Artist: "Band", Featured: []string{"Guest"}},
		testutil.Track{Name: "Home Recording", Local: true},
		testutil.Track{Removed: true},
		testutil.Track{ID: "b", Name: "Beta"},
	)

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 100, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if page.Total != 4 {
		t.Errorf("Total = %d, want 4", page.Total)
	}
	if len(page.Items) != 4 {
		t.Fatalf("len(Items) = %d, want 4", len(page.Items))
	}

	want := []collection.Item{
		{ID: "a", Descriptor: collection.Descriptor{Name: "Alpha", Creator: "Band"}, Credits: []string{"Band", "Guest"}, Comparable: true},
		{Descriptor: collection.Descriptor{Name: "Home Recording"}, Comparable: false},
		{Comparable: false},
		{ID: "b", Descriptor: collection.Descriptor{Name: "Beta"}, Comparable: true},
	}
	for i, w := range want {
		if !reflect.DeepEqual(page.Items[i], w) {
			t.Errorf("Items[%d] = %+v, want %+v", i, page.Items[i], w)
		}
	}

	if got := collection.Build(page); got.Len() != 2 {
		t.Errorf("Build().Len() = %d, want 2", got.Len())
	}
}

func TestFetchPage_Offsets(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(5)...)
	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 2, 4)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if page.Offset != 4 || page.Limit != 2 {
		t.Errorf("Offset/Limit = %d/%d, want 4/2", page.Offset, page.Limit)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "t004" {
		t.Errorf("Items = %+v, want [t004]", page.Items)
	}
}

func TestFetchPage_UserPlaylists(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddUserPlaylists("u1",
		testutil.PlaylistRef{ID: "p1", Name: "Road Trip", Owner: "u1"},
		testutil.PlaylistRef{ID: "p2", Name: "Focus", Owner: "someone"},
	)
	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), collection.UserPlaylists("u1"), 50, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(page.Items))
	}
	if page.Items[1].ID != "p2" || page.Items[1].Descriptor.Creator != "someone" || !page.Items[1].Comparable {
		t.Errorf("Items[1] = %+v, want p2 owned by someone", page.Items[1])
	}
}

func TestFetchPage_Headers(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(1)...)

	cfg := DefaultConfig(mock.URL(), "OverlapTest/1.0")
	cfg.Tokens = StaticToken("secret")
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if got := mock.LastRequestHeader.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
	}
	if got := mock.LastRequestHeader.Get("User-Agent"); got != "OverlapTest/1.0" {
		t.Errorf("User-Agent = %q, want %q", got, "OverlapTest/1.0")
	}
}

func TestFetchPage_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrNotAuthorized},
		{"forbidden", http.StatusForbidden, ErrNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()

			mock.SetStatus("playlists/p1/tracks", tt.status)
			c := newTestClient(t, mock.URL())

			_, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("FetchPage() error = %v, want %v", err, tt.want)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("RequestCount = %d, want 1 (no retry)", mock.GetRequestCount())
			}
		})
	}
}

func TestFetchPage_UnknownResourceIsNotFound(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	_, err := c.FetchPage(context.Background(), collection.PlaylistTracks("missing"), 10, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FetchPage() error = %v, want ErrNotFound", err)
	}
}

func TestFetchPage_ThrottleReturnsSignal(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(1)...)
	mock.ThrottleNext(1, 0)
	c := newTestClient(t, mock.URL())

	_, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)

	sig, ok := pagination.AsThrottle(err)
	if !ok {
		t.Fatalf("FetchPage() error = %v, want throttle signal", err)
	}
	if sig.RetryAfter() != 0 {
		t.Errorf("RetryAfter() = %v, want 0", sig.RetryAfter())
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1 (throttle not retried by client)", mock.GetRequestCount())
	}

	state, err := c.Throttle().GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ThrottleCount != 1 {
		t.Errorf("ThrottleCount = %d, want 1", state.ThrottleCount)
	}
}

func TestFetchPage_ThrottleSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(1)...)
	mock.ThrottleNext(1, 2*time.Second)

	cfg := DefaultConfig(mock.URL(), "OverlapTest/1.0")
	cfg.Redis = rdb
	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = first.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)
	if sig, ok := pagination.AsThrottle(err); !ok || sig.RetryAfter() != 2*time.Second {
		t.Fatalf("FetchPage() error = %v, want throttle with 2s", err)
	}

	state, err := second.Throttle().GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.CoolingDown() {
		t.Error("second client CoolingDown() = false, want true")
	}
}

func TestFetchPage_CooldownPastDeadline(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.AddPlaylist("p1", numberedTracks(1)...)

	c := newTestClient(t, mock.URL())
	if err := c.Throttle().RecordThrottle(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.FetchPage(ctx, collection.PlaylistTracks("p1"), 10, 0)
	sig, ok := pagination.AsThrottle(err)
	if !ok {
		t.Fatalf("FetchPage() error = %v, want throttle signal", err)
	}
	if sig.RetryAfter() < time.Second || sig.RetryAfter() > 2*time.Second {
		t.Errorf("RetryAfter() = %v, want remaining cooldown ~2s", sig.RetryAfter())
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0 during cooldown", mock.GetRequestCount())
	}
}

func TestFetchAll_WaitsOutCooldownLongerThanPageTimeout(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.AddPlaylist("p1", numberedTracks(50)...)

	c := newTestClient(t, mock.URL())
	if err := c.Throttle().RecordThrottle(context.Background(), time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	fetchCfg := pagination.DefaultConfig()
	fetchCfg.PageSize = 20
	fetchCfg.Timeout = 300 * time.Millisecond
	fetcher := pagination.NewFetcher(c, fetchCfg)

	start := time.Now()
	pages, err := fetcher.FetchAll(context.Background(), collection.PlaylistTracks("p1"), 0)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if got := len(collection.Items(pages)); got != 50 {
		t.Errorf("items = %d, want 50", got)
	}
	if elapsed := time.Since(start); elapsed < 700*time.Millisecond {
		t.Errorf("FetchAll() took %v, want the cooldown waited out", elapsed)
	}
}

func TestFetchPage_ServerErrorRetried(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler("playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[{"track":{"id":"a","name":"Alpha","artists":[]}}],"total":1,"offset":0,"limit":10}`))
	})
	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(page.Items) != 1 || page.Items[0].ID != "a" {
		t.Errorf("Items = %+v, want [a]", page.Items)
	}
}

func TestFetchPage_ServerErrorExhausted(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.SetStatus("playlists/p1/tracks", http.StatusBadGateway)
	c := newTestClient(t, mock.URL())

	_, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("FetchPage() error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("FetchPage() error = %v, want wrapped 502 APIError", err)
	}
	if mock.GetRequestCount() != fastRetry.MaxAttempts {
		t.Errorf("RequestCount = %d, want %d", mock.GetRequestCount(), fastRetry.MaxAttempts)
	}
}

func TestFetchPage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing items", `{"total":3}`},
		{"missing total", `{"items":[]}`},
		{"null items", `{"items":null,"total":0}`},
		{"bad track", `{"items":[{"track":"nope"}],"total":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()

			mock.SetHandler("playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			})
			c := newTestClient(t, mock.URL())

			_, err := c.FetchPage(context.Background(), collection.PlaylistTracks("p1"), 10, 0)
			if !errors.Is(err, pagination.ErrMalformedResponse) {
				t.Errorf("FetchPage() error = %v, want ErrMalformedResponse", err)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("RequestCount = %d, want 1", mock.GetRequestCount())
			}
		})
	}
}

func TestFetchAll_ThroughClient(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(250)...)
	c := newTestClient(t, mock.URL())

	cfg := pagination.DefaultConfig()
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	fetcher := pagination.NewFetcher(c, cfg)

	pages, err := fetcher.FetchAll(context.Background(), collection.PlaylistTracks("p1"), 100)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(pages) != 3 {
		t.Errorf("len(pages) = %d, want 3", len(pages))
	}
	if got := collection.Build(pages...); got.Len() != 250 {
		t.Errorf("Build().Len() = %d, want 250", got.Len())
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", mock.GetRequestCount())
	}
}

func TestFetchAll_ThroughClientRecoversFromThrottle(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	mock.AddPlaylist("p1", numberedTracks(250)...)
	c := newTestClient(t, mock.URL())

	cfg := pagination.DefaultConfig()
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	fetcher := pagination.NewFetcher(c, cfg)

	mock.ThrottleNext(1, 0)

	pages, err := fetcher.FetchAll(context.Background(), collection.PlaylistTracks("p1"), 100)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if got := collection.Build(pages...); got.Len() != 250 {
		t.Errorf("Build().Len() = %d, want 250", got.Len())
	}
	if mock.GetThrottledCount() != 1 {
		t.Errorf("ThrottledCount = %d, want 1", mock.GetThrottledCount())
	}
}
