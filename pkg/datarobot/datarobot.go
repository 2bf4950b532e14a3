// Package datarobot is the resource layer of the client library:
// projects, models, jobs, deployments, featurelists and batch
// predictions, built as thin consumers of the transport, the async
// resolver and the pager.
package datarobot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/async"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/client"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/config"
)

// DefaultMaxWait bounds async operations when the caller passes no
// budget of its own.
const DefaultMaxWait = 10 * time.Minute

// Client exposes the platform's resource surface.
type Client struct {
	api      *client.Client
	resolver *async.Resolver
	logger   zerolog.Logger
}

// New creates a resource client over a fresh transport.
func New(cfg client.Config) (*Client, error) {
	api, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return fromAPI(api), nil
}

// NewFromProfile creates a client from a configuration profile.
func NewFromProfile(p *config.Profile) (*Client, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return New(p.ClientConfig())
}

// NewFromEnvironment creates a client from the profile file and
// DATAROBOT_* environment variables.
func NewFromEnvironment() (*Client, error) {
	p, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(p.ClientConfig())
}

func fromAPI(api *client.Client) *Client {
	return &Client{
		api:      api,
		resolver: async.NewResolver(api, async.DefaultConfig()),
		logger:   log.With().Str("component", "datarobot").Logger(),
	}
}

// API exposes the underlying transport for endpoints the resource layer
// does not wrap.
func (c *Client) API() *client.Client {
	return c.api
}

// WaitForAsyncResolution drives a status URL (typically a write
// response's Location header) to a terminal state and returns how it
// resolved: the finished resource's URL, or the final status document.
func (c *Client) WaitForAsyncResolution(ctx context.Context, statusURL string, maxWait time.Duration) (*async.Resolution, error) {
	return c.resolver.Resolve(ctx, statusURL, c.maxWait(maxWait))
}

// maxWait substitutes the package default for an unset budget.
func (c *Client) maxWait(maxWait time.Duration) time.Duration {
	if maxWait <= 0 {
		return DefaultMaxWait
	}
	return maxWait
}

// resolveToResource resolves an async status URL and fetches the
// resource its redirect names into out.
func (c *Client) resolveToResource(ctx context.Context, statusURL string, maxWait time.Duration, out any) error {
	res, err := c.resolver.Resolve(ctx, statusURL, c.maxWait(maxWait))
	if err != nil {
		return err
	}
	if res.Location == "" {
		return fmt.Errorf("operation at %s resolved without a resource location", statusURL)
	}
	return c.api.GetJSON(ctx, res.Location, nil, out)
}

// responseLocation drains a write response and returns its Location
// header: the status resource for async submissions, or the created
// resource for synchronous ones.
func responseLocation(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("response carried no Location header (status %d)", resp.StatusCode)
	}
	return location, nil
}

// idFromLocation extracts the trailing resource id from a Location URL.
func idFromLocation(location string) string {
	trimmed := strings.TrimSuffix(location, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
