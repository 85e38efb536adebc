//go:build integration

package client

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/playlist-overlap/internal/testutil"
	"github.com/Sternrassler/playlist-overlap/pkg/collection"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_ThrottleCooldownSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.AddPlaylist("p1", numberedTracks(3)...)

	cfg := DefaultConfig(mock.URL(), "OverlapIntegration/1.0")
	cfg.Redis = redisClient
	cfg.Retry = fastRetry

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	mock.ThrottleNext(1, 1*time.Second)

	if _, err := first.FetchPage(ctx, collection.PlaylistTracks("p1"), 10, 0); err == nil {
		t.Fatal("Expected throttle error on first request")
	}

	// The second client must sit out the cooldown recorded by the first.
	start := time.Now()
	page, err := second.FetchPage(ctx, collection.PlaylistTracks("p1"), 10, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 800*time.Millisecond {
		t.Errorf("second client waited %v, want >= ~1s cooldown", elapsed)
	}
	if len(page.Items) != 3 {
		t.Errorf("len(Items) = %d, want 3", len(page.Items))
	}
}

func TestIntegration_FullFetchWithThrottle(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.AddPlaylist("big", numberedTracks(1234)...)

	cfg := DefaultConfig(mock.URL(), "OverlapIntegration/1.0")
	cfg.Redis = redisClient
	cfg.RequestsPerSecond = 100
	cfg.Burst = 100
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fetchCfg := pagination.DefaultConfig()
	fetchCfg.InitialBackoff = 50 * time.Millisecond
	fetcher := pagination.NewFetcher(c, fetchCfg)

	mock.ThrottleNext(2, 0)

	pages, err := fetcher.FetchAll(context.Background(), collection.PlaylistTracks("big"), 100)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if got := collection.Build(pages...); got.Len() != 1234 {
		t.Errorf("Build().Len() = %d, want 1234", got.Len())
	}
}
