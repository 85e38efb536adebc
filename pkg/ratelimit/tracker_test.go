package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// setupMiniRedis starts an in-memory Redis server for unit tests.
func setupMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewTracker_Defaults(t *testing.T) {
	tracker := NewTracker(nil, 0, 0, testLogger())

	if got := tracker.limiter.Limit(); got != DefaultRequestsPerSecond {
		t.Errorf("Limit() = %v, want %d", got, DefaultRequestsPerSecond)
	}
	if got := tracker.limiter.Burst(); got != DefaultRequestsPerSecond {
		t.Errorf("Burst() = %d, want %d", got, DefaultRequestsPerSecond)
	}
}

func TestTracker_LocalState(t *testing.T) {
	tracker := NewTracker(nil, 100, 100, testLogger())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.CoolingDown() {
		t.Error("fresh tracker should not be cooling down")
	}

	if err := tracker.RecordThrottle(ctx, 2*time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.CoolingDown() {
		t.Error("tracker should be cooling down after RecordThrottle")
	}
	if state.ThrottleCount != 1 {
		t.Errorf("ThrottleCount = %d, want 1", state.ThrottleCount)
	}
}

func TestTracker_RedisState(t *testing.T) {
	client, mr := setupMiniRedis(t)
	tracker := NewTracker(client, 100, 100, testLogger())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() on empty redis error = %v", err)
	}
	if state.CoolingDown() || state.ThrottleCount != 0 {
		t.Errorf("empty redis state = %+v, want zero", state)
	}

	if err := tracker.RecordThrottle(ctx, 3*time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	if !mr.Exists(RedisKeyCooldownUntil) {
		t.Errorf("key %s not written", RedisKeyCooldownUntil)
	}

	// A second tracker sharing the same Redis sees the cooldown.
	other := NewTracker(client, 100, 100, testLogger())
	state, err = other.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.CoolingDown() {
		t.Error("shared state should be cooling down")
	}
	if remaining := state.Remaining(); remaining > 3*time.Second || remaining < 2*time.Second {
		t.Errorf("Remaining() = %v, want ~3s", remaining)
	}
	if state.ThrottleCount != 1 {
		t.Errorf("ThrottleCount = %d, want 1", state.ThrottleCount)
	}
}

func TestTracker_RecordThrottle_KeepsLongerCooldown(t *testing.T) {
	client, _ := setupMiniRedis(t)
	tracker := NewTracker(client, 100, 100, testLogger())
	ctx := context.Background()

	if err := tracker.RecordThrottle(ctx, 30*time.Second); err != nil {
		t.Fatalf("RecordThrottle(30s) error = %v", err)
	}
	if err := tracker.RecordThrottle(ctx, 1*time.Second); err != nil {
		t.Fatalf("RecordThrottle(1s) error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining() < 25*time.Second {
		t.Errorf("Remaining() = %v, want the 30s cooldown kept", state.Remaining())
	}
	if state.ThrottleCount != 2 {
		t.Errorf("ThrottleCount = %d, want 2", state.ThrottleCount)
	}
}

func TestTracker_Wait_NoCooldown(t *testing.T) {
	tracker := NewTracker(nil, 1000, 1000, testLogger())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v without cooldown", elapsed)
	}
}

func TestTracker_Wait_Cooldown(t *testing.T) {
	tracker := NewTracker(nil, 1000, 1000, testLogger())
	ctx := context.Background()

	if err := tracker.RecordThrottle(ctx, 150*time.Millisecond); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Wait() returned after %v, want cooldown respected", elapsed)
	}
}

func TestTracker_Wait_ContextCancelled(t *testing.T) {
	tracker := NewTracker(nil, 1000, 1000, testLogger())

	if err := tracker.RecordThrottle(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := tracker.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestTracker_Wait_CooldownPastDeadline(t *testing.T) {
	tracker := NewTracker(nil, 1000, 1000, testLogger())

	if err := tracker.RecordThrottle(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("RecordThrottle() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tracker.Wait(ctx)

	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("Wait() error = %v, want *CooldownError", err)
	}
	if cooldown.Remaining < 4*time.Second || cooldown.Remaining > 5*time.Second {
		t.Errorf("Remaining = %v, want ~5s", cooldown.Remaining)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() blocked for %v, want immediate return", elapsed)
	}
}

func TestTracker_Wait_PacerPastDeadline(t *testing.T) {
	tracker := NewTracker(nil, 1, 1, testLogger())

	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var cooldown *CooldownError
	if err := tracker.Wait(ctx); !errors.As(err, &cooldown) {
		t.Fatalf("second Wait() error = %v, want *CooldownError", err)
	}

	// Without a deadline the pacer delay is waited out.
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("third Wait() error = %v", err)
	}
}

func TestTracker_Wait_RedisDown(t *testing.T) {
	client, mr := setupMiniRedis(t)
	tracker := NewTracker(client, 1000, 1000, testLogger())
	mr.Close()

	// Redis failures must not block requests.
	if err := tracker.Wait(context.Background()); err != nil {
		t.Errorf("Wait() with redis down error = %v, want nil", err)
	}
}

func TestTracker_RecordThrottle_ConcurrentKeepsLongest(t *testing.T) {
	_, mr := setupMiniRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()

			tracker := NewTracker(rdb, 100, 100, testLogger())
			if err := tracker.RecordThrottle(ctx, time.Duration(i+1)*time.Second); err != nil {
				t.Errorf("RecordThrottle() error = %v", err)
			}
		}()
	}
	wg.Wait()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	state, err := NewTracker(rdb, 100, 100, testLogger()).GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining() < 9*time.Second {
		t.Errorf("Remaining() = %v, want the 10s cooldown kept", state.Remaining())
	}
	if state.ThrottleCount != 10 {
		t.Errorf("ThrottleCount = %d, want 10", state.ThrottleCount)
	}
	if ttl := mr.TTL(RedisKeyCooldownUntil); ttl < time.Minute {
		t.Errorf("cooldown key TTL = %v, want at least 1m", ttl)
	}
}
