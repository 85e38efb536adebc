package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for throttle tracking.
var (
	throttleSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlap_throttle_signals_total",
		Help: "Total number of throttle signals recorded from the remote catalog",
	})

	cooldownWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlap_cooldown_waits_total",
		Help: "Total number of requests delayed by an active cooldown",
	})

	cooldownWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlap_cooldown_wait_seconds",
		Help:    "Time requests spent waiting for a cooldown to end",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Defaults for the local request pacer.
const (
	DefaultRequestsPerSecond = 10
)

// Tracker records throttle signals and gates requests.
// With a nil Redis client the state is kept in process.
type Tracker struct {
	redis   *redis.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	local ThrottleState
}

// NewTracker creates a new throttle tracker. rps and burst configure the
// local token bucket; non-positive values fall back to defaults.
func NewTracker(redisClient *redis.Client, rps, burst int, logger zerolog.Logger) *Tracker {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = rps
	}

	return &Tracker{
		redis:   redisClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// GetState retrieves the current throttle state.
// Returns a zero (not cooling down) state if nothing was recorded.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	state := &ThrottleState{}

	until, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	if err == nil {
		state.CooldownUntil = time.UnixMilli(until)
	}

	last, err := t.redis.Get(ctx, RedisKeyLastThrottle).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last throttle: %w", err)
	}
	if err == nil {
		state.LastThrottle = time.UnixMilli(last)
	}

	count, err := t.redis.Get(ctx, RedisKeyThrottleCount).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get throttle count: %w", err)
	}
	state.ThrottleCount = count

	return state, nil
}

// recordThrottleScript raises the stored cooldown end to ARGV[1] unless a
// later end is already stored, and returns the resulting end in unix
// milliseconds. The compare and set run atomically on the server.
var recordThrottleScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local proposed = tonumber(ARGV[1])
if proposed > current then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
	current = proposed
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('INCR', KEYS[3])
return current
`)

// CooldownError is returned by Wait when the cooldown or pacer delay ends
// after the context deadline. Remaining is the delay the caller should back
// off before trying again.
type CooldownError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("request delay of %v outlasts the deadline", e.Remaining)
}

// RecordThrottle stores a throttle signal asking callers to wait for wait.
// An existing longer cooldown is kept.
func (t *Tracker) RecordThrottle(ctx context.Context, wait time.Duration) error {
	now := time.Now()
	throttleSignalsTotal.Inc()

	if t.redis == nil {
		t.mu.Lock()
		t.local.extend(now, wait)
		until := t.local.CooldownUntil
		t.mu.Unlock()
		t.logThrottle(wait, until)
		return nil
	}

	proposed := cooldownEnd(now, wait)

	// Keys expire shortly after the cooldown so stale state does not linger.
	ttl := time.Until(proposed) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	keys := []string{RedisKeyCooldownUntil, RedisKeyLastThrottle, RedisKeyThrottleCount}
	until, err := recordThrottleScript.Run(ctx, t.redis, keys,
		proposed.UnixMilli(), now.UnixMilli(), ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	t.logThrottle(wait, time.UnixMilli(until))
	return nil
}

func (t *Tracker) logThrottle(wait time.Duration, until time.Time) {
	t.logger.Warn().
		Dur("wait", wait).
		Time("cooldown_until", until).
		Msg("Remote catalog throttled - cooldown recorded")
}

// Wait blocks until no cooldown is active and the local pacer grants a token.
// It returns early with the context error if ctx ends first. When the delay
// would run past the context deadline it returns a *CooldownError at once,
// leaving the backoff to the caller.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		// State backend trouble should not stop requests; pacing still applies.
		t.logger.Warn().Err(err).Msg("Throttle state unavailable - skipping cooldown check")
	} else if remaining := state.Remaining(); remaining > 0 {
		if exceedsDeadline(ctx, remaining) {
			return &CooldownError{Remaining: remaining}
		}

		cooldownWaitsTotal.Inc()
		cooldownWaitSeconds.Observe(remaining.Seconds())

		t.logger.Debug().
			Dur("remaining", remaining).
			Msg("Cooldown active - delaying request")

		if err := sleep(ctx, remaining); err != nil {
			return err
		}
	}

	r := t.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter wait: burst of %d admits no request", t.limiter.Burst())
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if exceedsDeadline(ctx, delay) {
		r.Cancel()
		return &CooldownError{Remaining: delay}
	}
	if err := sleep(ctx, delay); err != nil {
		r.Cancel()
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

func exceedsDeadline(ctx context.Context, d time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return ok && time.Until(deadline) < d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
