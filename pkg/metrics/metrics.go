// Package metrics provides the centralized Prometheus metrics registry for
// the DataRobot client. All metrics are defined in their respective packages
// (client, async, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - datarobot_requests_total{method, status} (Counter): Requests by method and HTTP status
//   - datarobot_request_duration_seconds{method} (Histogram): Request duration by method
//   - datarobot_network_retries_total (Counter): Connection-level retry attempts
//   - datarobot_retry_exhausted_total (Counter): Requests that exhausted network retries
//
// Async Resolution Metrics (pkg/async):
//   - datarobot_polls_total{outcome} (Counter): Poll responses by outcome
//     (pending, redirect, completed, failed, unexpected)
//   - datarobot_resolutions_total{result} (Counter): Finished resolutions by result
//     (redirect, completed, failed, timeout, error, cancelled)
//   - datarobot_resolution_duration_seconds (Histogram): Wall-clock time per resolution
//
// Rate Limit Metrics (pkg/ratelimit):
//   - datarobot_rate_limited_total (Counter): 429 responses observed
//   - datarobot_rate_limit_deferrals_total (Counter): Requests delayed by an active window
//   - datarobot_rate_limit_wait_seconds (Histogram): Time spent waiting out windows
//
// Example Prometheus Queries:
//
//   # Share of resolutions ending in timeout
//   sum(rate(datarobot_resolutions_total{result="timeout"}[15m])) /
//   sum(rate(datarobot_resolutions_total[15m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(datarobot_request_duration_seconds_bucket[5m]))
//
//   # Poll pressure per outcome
//   rate(datarobot_polls_total[5m])
//
//   # Rate-limit pushback frequency
//   rate(datarobot_rate_limited_total[15m])
