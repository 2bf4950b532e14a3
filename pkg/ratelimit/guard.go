package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datarobot_rate_limited_total",
		Help: "Total number of 429 responses observed",
	})

	rateLimitDeferralsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datarobot_rate_limit_deferrals_total",
		Help: "Total number of requests delayed by an active rate-limit window",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datarobot_rate_limit_wait_seconds",
		Help:    "Time spent waiting out rate-limit windows",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Guard records rate-limit pushback and gates requests until the window
// passes. With a Redis client the deadline is shared across every process
// talking to the same platform; without one it is kept in-process.
type Guard struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu         sync.Mutex
	localUntil time.Time
}

// NewGuard creates a rate-limit guard. redisClient may be nil.
func NewGuard(redisClient *redis.Client, logger zerolog.Logger) *Guard {
	return &Guard{
		redis:  redisClient,
		logger: logger,
	}
}

// Observe inspects a response and records a new window when the platform
// pushed back with 429. Other responses are ignored.
func (g *Guard) Observe(ctx context.Context, resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}

	retryAfter, ok := ParseRetryAfter(resp.Header.Get("Retry-After"))
	if !ok {
		retryAfter = DefaultRetryAfter
	}
	retryAfter = clampWindow(retryAfter)
	until := time.Now().Add(retryAfter)

	url := ""
	if resp.Request != nil {
		url = resp.Request.URL.String()
	}

	rateLimitedTotal.Inc()
	g.logger.Warn().
		Str("url", url).
		Dur("retry_after", retryAfter).
		Time("blocked_until", until).
		Msg("Rate limit pushback observed")

	if err := g.store(ctx, until, retryAfter); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to store rate limit window, keeping it in-process")
		g.setLocal(until)
	}
}

// GetWindow returns the currently recorded window. A zero-valued window
// means no pushback is in effect.
func (g *Guard) GetWindow(ctx context.Context) (*Window, error) {
	if g.redis == nil {
		g.mu.Lock()
		until := g.localUntil
		g.mu.Unlock()
		return &Window{BlockedUntil: until}, nil
	}

	millis, err := g.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err == redis.Nil {
		return &Window{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit window: %w", err)
	}
	return &Window{BlockedUntil: time.UnixMilli(millis)}, nil
}

// Delay returns how long the next request must wait before being sent.
// Errors reading shared state degrade to "no wait": a broken Redis must
// not take the client down with it.
func (g *Guard) Delay(ctx context.Context) time.Duration {
	window, err := g.GetWindow(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Rate limit state unavailable, allowing request")
		return 0
	}
	return window.Remaining()
}

// Wait blocks until any active window has passed or ctx is done.
func (g *Guard) Wait(ctx context.Context) error {
	delay := g.Delay(ctx)
	if delay <= 0 {
		return nil
	}

	rateLimitDeferralsTotal.Inc()
	rateLimitWaitSeconds.Observe(delay.Seconds())
	g.logger.Warn().
		Dur("delay", delay).
		Msg("Deferring request until rate-limit window passes")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// store persists the deadline, preferring Redis so every process backs off.
func (g *Guard) store(ctx context.Context, until time.Time, ttl time.Duration) error {
	if g.redis == nil {
		g.setLocal(until)
		return nil
	}
	value := strconv.FormatInt(until.UnixMilli(), 10)
	if err := g.redis.Set(ctx, RedisKeyBlockedUntil, value, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit window: %w", err)
	}
	return nil
}

func (g *Guard) setLocal(until time.Time) {
	g.mu.Lock()
	if until.After(g.localUntil) {
		g.localUntil = until
	}
	g.mu.Unlock()
}
