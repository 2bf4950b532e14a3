// Package config loads client configuration from a YAML profile file
// and environment variables. Environment variables win over the profile
// file, so one-off overrides never require editing the profile.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/client"
)

// Environment variables recognized by Load.
const (
	// EnvEndpoint overrides the profile's endpoint.
	EnvEndpoint = "DATAROBOT_ENDPOINT"

	// EnvAPIToken overrides the profile's token.
	EnvAPIToken = "DATAROBOT_API_TOKEN"

	// EnvConfigFile names the profile file to read instead of the
	// default location. Pointing it at a missing file is an error.
	EnvConfigFile = "DATAROBOT_CONFIG_FILE"
)

// Profile is the on-disk configuration document.
type Profile struct {
	// Endpoint is the API base URL, e.g. "https://app.datarobot.com/api/v2".
	Endpoint string `yaml:"endpoint"`

	// Token is the API token.
	Token string `yaml:"token"`

	// UserAgent optionally replaces the default client identification.
	UserAgent string `yaml:"user_agent,omitempty"`

	// MaxRetries optionally overrides the connection-retry budget.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// DefaultPath returns the standard profile location, e.g.
// ~/.config/datarobot/drconfig.yaml on Linux.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "datarobot", "drconfig.yaml"), nil
}

// LoadFile reads and parses a profile file. It performs no verification;
// Load applies env overrides first and verifies the merged result.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Load assembles the effective profile: the file named by
// DATAROBOT_CONFIG_FILE (or the default location when unset), overridden
// by DATAROBOT_ENDPOINT and DATAROBOT_API_TOKEN. A missing default file
// is fine when the environment carries the settings; a missing explicit
// file is an error.
func Load() (*Profile, error) {
	profile := &Profile{}

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		loaded, err := LoadFile(path)
		switch {
		case err == nil:
			profile = loaded
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	if v := os.Getenv(EnvEndpoint); v != "" {
		profile.Endpoint = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		profile.Token = v
	}

	if err := profile.Verify(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Verify checks that the profile can actually reach the platform.
func (p *Profile) Verify() error {
	if p.Endpoint == "" {
		return fmt.Errorf("no endpoint configured: set %s or add endpoint to the profile file", EnvEndpoint)
	}
	parsed, err := url.Parse(p.Endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("endpoint must be an absolute http(s) URL (got %q)", p.Endpoint)
	}
	if p.Token == "" {
		return fmt.Errorf("no api token configured: set %s or add token to the profile file", EnvAPIToken)
	}
	return nil
}

// ClientConfig bridges the profile to a transport configuration.
func (p *Profile) ClientConfig() client.Config {
	cfg := client.DefaultConfig(p.Endpoint, p.Token)
	if p.UserAgent != "" {
		cfg.UserAgent = p.UserAgent
	}
	if p.MaxRetries > 0 {
		cfg.MaxRetries = p.MaxRetries
	}
	return cfg
}
