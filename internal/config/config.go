// Package config loads the service configuration from an optional TOML file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds everything the service needs at startup.
type Config struct {
	Token     string `toml:"token"`
	RepoOwner string `toml:"repo_owner"`
	RepoName  string `toml:"repo_name"`
	// BaseURL points the clients at a GitHub Enterprise host. Empty means github.com.
	BaseURL string `toml:"base_url"`

	Port        int      `toml:"port"`
	Concurrency int      `toml:"concurrency"`
	CORSOrigins []string `toml:"cors_origins"`

	WaitOnRateLimit bool `toml:"wait_on_rate_limit"`
	VerifyRepo      bool `toml:"verify_repo"`
}

const (
	defaultPort        = 3001
	defaultConcurrency = 10
)

// Environment variable names.
const (
	EnvToken       = "GITHUB_PERSONAL_ACCESS_TOKEN"
	EnvRepoOwner   = "GITHUB_REPO_OWNER"
	EnvRepoName    = "GITHUB_REPO_NAME"
	EnvBaseURL     = "GITHUB_BASE_URL"
	EnvPort        = "PORT"
	EnvConcurrency = "STATS_CONCURRENCY"
	EnvCORSOrigins = "STATS_CORS_ORIGINS"
	EnvWaitRate    = "STATS_WAIT_RATE_LIMIT"
	EnvVerifyRepo  = "STATS_VERIFY_REPO"
)

// Default returns a Config with every default applied and nothing else set.
func Default() *Config {
	return &Config{
		Port:        defaultPort,
		Concurrency: defaultConcurrency,
		CORSOrigins: []string{"*"},
	}
}

// Load builds the configuration. Values from the TOML file at path (skipped
// when path is empty) override defaults, and environment variables override both.
// Missing repository coordinates are left empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvToken); ok {
		c.Token = v
	}
	if v, ok := lookup(EnvRepoOwner); ok {
		c.RepoOwner = v
	}
	if v, ok := lookup(EnvRepoName); ok {
		c.RepoName = v
	}
	if v, ok := lookup(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvCORSOrigins); ok && v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}

	var err error
	if v, ok := lookup(EnvPort); ok && v != "" {
		if c.Port, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvPort, err)
		}
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		if c.Concurrency, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvConcurrency, err)
		}
	}
	if v, ok := lookup(EnvWaitRate); ok && v != "" {
		if c.WaitOnRateLimit, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvWaitRate, err)
		}
	}
	if v, ok := lookup(EnvVerifyRepo); ok && v != "" {
		if c.VerifyRepo, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvVerifyRepo, err)
		}
	}
	return nil
}

// Validate checks the numeric settings. Repository coordinates are not checked.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
