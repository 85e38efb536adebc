// Package ratelimit tracks throttle signals from the remote catalog and gates
// outgoing requests. A throttle observed by one client instance puts every
// instance sharing the same Redis into a cooldown until the signalled wait
// has elapsed.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyCooldownUntil = "overlap:throttle:cooldown_until"
	RedisKeyLastThrottle  = "overlap:throttle:last_throttle"
	RedisKeyThrottleCount = "overlap:throttle:count"
)

// MaxCooldown bounds a single recorded cooldown. Retry-After values above it
// are clamped so a bogus header cannot stall every instance for hours.
const MaxCooldown = 10 * time.Minute

// ThrottleState is the current throttle state of the remote catalog.
// It is shared across all client instances via Redis.
type ThrottleState struct {
	// CooldownUntil is the earliest time new requests may be sent.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastThrottle is when the most recent throttle signal was recorded.
	LastThrottle time.Time `json:"last_throttle"`

	// ThrottleCount is the number of throttle signals recorded.
	ThrottleCount int64 `json:"throttle_count"`
}

// CoolingDown reports whether requests must still wait.
func (s *ThrottleState) CoolingDown() bool {
	return time.Now().Before(s.CooldownUntil)
}

// Remaining returns the time left in the cooldown, or 0.
func (s *ThrottleState) Remaining() time.Duration {
	d := time.Until(s.CooldownUntil)
	if d < 0 {
		return 0
	}
	return d
}

// extend moves the cooldown forward to now+wait unless it already ends later.
func (s *ThrottleState) extend(now time.Time, wait time.Duration) {
	if until := cooldownEnd(now, wait); until.After(s.CooldownUntil) {
		s.CooldownUntil = until
	}
	s.LastThrottle = now
	s.ThrottleCount++
}

// cooldownEnd is now+wait with wait clamped to MaxCooldown.
func cooldownEnd(now time.Time, wait time.Duration) time.Time {
	if wait > MaxCooldown {
		wait = MaxCooldown
	}
	return now.Add(wait)
}
