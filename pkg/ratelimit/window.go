// Package ratelimit tracks rate-limit pushback from the DataRobot API and
// gates outgoing requests. When the platform answers 429 with a Retry-After
// header, the blocked-until deadline is recorded (shared across processes
// via Redis when available) and later requests wait the window out instead
// of burning further quota.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// RedisKeyBlockedUntil stores the window deadline as unix milliseconds.
// The key carries a TTL matching the window, so it expires on its own.
const RedisKeyBlockedUntil = "datarobot:rate_limit:blocked_until"

const (
	// DefaultRetryAfter is assumed when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 1 * time.Second

	// MaxWindow caps how long a single 429 can block requests, whatever
	// the server claims.
	MaxWindow = 10 * time.Minute
)

// Window is a recorded rate-limit pushback period.
type Window struct {
	// BlockedUntil is the instant the window ends.
	BlockedUntil time.Time `json:"blocked_until"`

	// ObservedAt is when the 429 that opened the window was seen.
	ObservedAt time.Time `json:"observed_at"`
}

// Active reports whether the window is still in effect.
func (w *Window) Active() bool {
	return time.Now().Before(w.BlockedUntil)
}

// Remaining returns the time left in the window, or 0 if it has passed.
func (w *Window) Remaining() time.Duration {
	d := time.Until(w.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter interprets a Retry-After header value, either delay
// seconds or an HTTP date. The second return is false when the value is
// absent or unusable.
func ParseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// clampWindow bounds a server-requested pause to MaxWindow.
func clampWindow(d time.Duration) time.Duration {
	if d > MaxWindow {
		return MaxWindow
	}
	return d
}
