package async

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/backoff"
)

// Prometheus metrics for async resolution.
var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datarobot_polls_total",
		Help: "Status polls by classified outcome",
	}, []string{"outcome"})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datarobot_resolutions_total",
		Help: "Finished resolve calls by result",
	}, []string{"result"})

	resolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datarobot_resolution_duration_seconds",
		Help:    "Wall-clock duration of resolve calls",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
	})
)

// Getter is the transport capability the resolver needs: a GET that does
// not follow redirects, so a 303 surfaces with its Location header
// intact. Implementations join relative URLs to their configured
// endpoint and pass absolute URLs through unmodified. *client.Client
// satisfies it.
type Getter interface {
	GetNoRedirect(ctx context.Context, pathOrURL string) (*http.Response, error)
}

// Config controls the polling cadence.
type Config struct {
	// InitialPollDelay is the pause after the first poll. Subsequent
	// pauses double.
	InitialPollDelay time.Duration

	// MaxPollDelay caps the pause between polls.
	MaxPollDelay time.Duration
}

// DefaultConfig returns the default polling cadence.
func DefaultConfig() Config {
	return Config{
		InitialPollDelay: 100 * time.Millisecond,
		MaxPollDelay:     5 * time.Second,
	}
}

// Resolver drives async status URLs to a terminal state.
type Resolver struct {
	getter Getter
	config Config
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given transport. Zero config
// values fall back to the defaults.
func NewResolver(getter Getter, cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.InitialPollDelay <= 0 {
		cfg.InitialPollDelay = def.InitialPollDelay
	}
	if cfg.MaxPollDelay <= 0 {
		cfg.MaxPollDelay = def.MaxPollDelay
	}

	return &Resolver{
		getter: getter,
		config: cfg,
		logger: log.With().Str("component", "resolver").Logger(),
	}
}

// Cadence returns the effective polling cadence, for callers that run
// their own poll loops over Poll.
func (r *Resolver) Cadence() Config {
	return r.config
}

// Poll issues one GET against statusURL and classifies the response: 303
// is a Redirect, 200 is classified by the document's status field, and
// anything else returns *UnexpectedResponseError. Poll never retries a
// bad response; connection-level retries live in the transport.
func (r *Resolver) Poll(ctx context.Context, statusURL string) (Outcome, error) {
	resp, err := r.getter.GetNoRedirect(ctx, statusURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("poll %s: %w", statusURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read status body from %s: %w", statusURL, err)
	}
	body := string(data)

	if resp.StatusCode == http.StatusSeeOther {
		location := resp.Header.Get("Location")
		if location == "" {
			pollsTotal.WithLabelValues("unexpected").Inc()
			return Outcome{}, &UnexpectedResponseError{URL: statusURL, StatusCode: resp.StatusCode, Body: body}
		}
		pollsTotal.WithLabelValues(Redirect.String()).Inc()
		return Outcome{Kind: Redirect, Location: location, StatusCode: resp.StatusCode, Body: body}, nil
	}

	if resp.StatusCode != http.StatusOK {
		pollsTotal.WithLabelValues("unexpected").Inc()
		return Outcome{}, &UnexpectedResponseError{URL: statusURL, StatusCode: resp.StatusCode, Body: body}
	}

	status, err := parseStatus(data)
	if err != nil {
		pollsTotal.WithLabelValues("unexpected").Inc()
		return Outcome{}, &UnexpectedResponseError{URL: statusURL, StatusCode: resp.StatusCode, Body: body}
	}

	outcome := Outcome{
		Kind:       Classify(status.Status),
		Status:     status,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
	pollsTotal.WithLabelValues(outcome.Kind.String()).Inc()
	return outcome, nil
}

// Resolution is the successful result of Resolve.
type Resolution struct {
	// Location is the finished resource URL when the server resolved via
	// redirect.
	Location string

	// Status is the final document when the server resolved via a
	// terminal "completed" body instead of a redirect.
	Status Status
}

// Resolve polls statusURL until the operation reaches a terminal state
// or maxWait elapses. maxWait <= 0 means no deadline. A reported failure
// returns *OperationFailedError, an out-of-contract response returns
// *UnexpectedResponseError, and an exhausted budget returns
// *TimeoutError carrying the last observed response.
func (r *Resolver) Resolve(ctx context.Context, statusURL string, maxWait time.Duration) (*Resolution, error) {
	start := time.Now()
	result := "timeout"
	defer func() {
		resolutionsTotal.WithLabelValues(result).Inc()
		resolutionDuration.Observe(time.Since(start).Seconds())
	}()

	var last Outcome
	for attempt, elapsed := range backoff.WaitWith(ctx, maxWait, r.config.InitialPollDelay, r.config.MaxPollDelay) {
		outcome, err := r.Poll(ctx, statusURL)
		if err != nil {
			result = "error"
			return nil, err
		}
		last = outcome

		switch outcome.Kind {
		case Redirect:
			result = "redirect"
			r.logger.Debug().
				Str("url", statusURL).
				Str("location", outcome.Location).
				Int("attempt", attempt).
				Dur("elapsed", elapsed).
				Msg("Operation resolved via redirect")
			return &Resolution{Location: outcome.Location}, nil

		case Completed:
			result = "completed"
			r.logger.Debug().
				Str("url", statusURL).
				Int("attempt", attempt).
				Dur("elapsed", elapsed).
				Msg("Operation reported completed")
			return &Resolution{Status: outcome.Status}, nil

		case Failed:
			result = "failed"
			r.logger.Error().
				Str("url", statusURL).
				Str("status", outcome.Status.Status).
				Str("message", outcome.Status.Message).
				Msg("Operation failed")
			return nil, &OperationFailedError{URL: statusURL, Status: outcome.Status, Body: outcome.Body}
		}

		r.logger.Debug().
			Str("url", statusURL).
			Str("status", outcome.Status.Status).
			Int("attempt", attempt).
			Dur("elapsed", elapsed).
			Msg("Operation still pending")
	}

	if err := ctx.Err(); err != nil {
		result = "cancelled"
		return nil, fmt.Errorf("resolve %s: %w", statusURL, err)
	}

	r.logger.Error().
		Str("url", statusURL).
		Dur("max_wait", maxWait).
		Int("last_status_code", last.StatusCode).
		Msg("Operation did not resolve within budget")

	return nil, &TimeoutError{
		URL:            statusURL,
		MaxWait:        maxWait,
		LastStatusCode: last.StatusCode,
		LastBody:       last.Body,
	}
}
