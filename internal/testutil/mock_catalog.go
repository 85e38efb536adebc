// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Track is a catalog track served by MockCatalog.
type Track struct {
	ID     string
	Name   string
	Artist string

	// Featured artists are served after Artist.
	Featured []string

	// Local tracks are served with is_local set.
	Local bool

	// Removed tracks are served as a null track entry.
	Removed bool
}

// PlaylistRef is an entry of a user's playlist listing.
type PlaylistRef struct {
	ID    string
	Name  string
	Owner string
}

// MockCatalog is a paginating mock of the catalog API.
type MockCatalog struct {
	server *httptest.Server

	mu        sync.RWMutex
	resources map[string][]any
	statuses  map[string]int
	handlers  map[string]http.HandlerFunc

	throttleNext  int
	throttleAfter time.Duration

	// Tracking
	RequestCount      int
	ThrottledCount    int
	requestsByPath    map[string]int
	LastRequestHeader http.Header
}

// NewMockCatalog creates and starts a mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		resources:      make(map[string][]any),
		statuses:       make(map[string]int),
		handlers:       make(map[string]http.HandlerFunc),
		requestsByPath: make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// AddPlaylist registers the tracks of a playlist.
func (m *MockCatalog) AddPlaylist(playlistID string, tracks ...Track) {
	m.setResource("playlists/"+playlistID+"/tracks", trackItems(tracks))
}

// AddLibrary registers the saved tracks of a user.
func (m *MockCatalog) AddLibrary(userID string, tracks ...Track) {
	m.setResource("users/"+userID+"/library", trackItems(tracks))
}

// AddUserPlaylists registers the playlist listing of a user.
func (m *MockCatalog) AddUserPlaylists(userID string, playlists ...PlaylistRef) {
	items := make([]any, 0, len(playlists))
	for _, p := range playlists {
		items = append(items, map[string]any{
			"id":    p.ID,
			"name":  p.Name,
			"owner": map[string]any{"id": p.Owner, "display_name": p.Owner},
		})
	}
	m.setResource("users/"+userID+"/playlists", items)
}

// SetStatus makes every request for resource answer with status.
func (m *MockCatalog) SetStatus(resource string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[resource] = status
}

// SetHandler overrides the handler for resource.
func (m *MockCatalog) SetHandler(resource string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[resource] = handler
}

// ThrottleNext answers the next n requests with 429 and the given
// Retry-After.
func (m *MockCatalog) ThrottleNext(n int, retryAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttleNext = n
	m.throttleAfter = retryAfter
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetThrottledCount returns the number of requests answered with 429.
func (m *MockCatalog) GetThrottledCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ThrottledCount
}

// RequestsFor returns the number of requests made for resource.
func (m *MockCatalog) RequestsFor(resource string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestsByPath[resource]
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ThrottledCount = 0
	m.requestsByPath = make(map[string]int)
	m.LastRequestHeader = nil
}

func (m *MockCatalog) setResource(resource string, items []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resource] = items
}

func (m *MockCatalog) serve(w http.ResponseWriter, r *http.Request) {
	resource := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/"), "/")

	m.mu.Lock()
	m.RequestCount++
	m.requestsByPath[resource]++
	m.LastRequestHeader = r.Header.Clone()
	throttled := m.throttleNext > 0
	if throttled {
		m.throttleNext--
		m.ThrottledCount++
	}
	retryAfter := m.throttleAfter
	handler := m.handlers[resource]
	status, hasStatus := m.statuses[resource]
	items, found := m.resources[resource]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	switch {
	case throttled:
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		w.WriteHeader(http.StatusTooManyRequests)
		return
	case handler != nil:
		handler(w, r)
		return
	case hasStatus:
		w.WriteHeader(status)
		return
	case !found:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	start := min(offset, len(items))
	end := min(start+limit, len(items))

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"items":  items[start:end],
		"total":  len(items),
		"offset": offset,
		"limit":  limit,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func trackItems(tracks []Track) []any {
	items := make([]any, 0, len(tracks))
	for _, t := range tracks {
		if t.Removed {
			items = append(items, map[string]any{"track": nil})
			continue
		}
		artists := []any{}
		if t.Artist != "" {
			artists = append(artists, map[string]any{"name": t.Artist})
		}
		for _, name := range t.Featured {
			artists = append(artists, map[string]any{"name": name})
		}
		id := any(t.ID)
		if t.Local {
			id = nil
		}
		items = append(items, map[string]any{
			"track": map[string]any{
				"id":       id,
				"name":     t.Name,
				"is_local": t.Local,
				"artists":  artists,
			},
		})
	}
	return items
}
