// Package config handles configuration for the server component: defaults,
// .env and process environment, an optional JSON file and command-line
// flags, applied in that order.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
)

// Config holds runtime settings for the bookstore auth server.
//
// An empty DatabaseDSN selects the in-memory credential store and an empty
// RateLimitStorageURL selects the in-memory limiter.
type Config struct {
	EndpointAddrHTTP    string
	EndpointAddrGRPC    string
	DatabaseDSN         string
	SecretKey           string
	TokenLifetime       time.Duration
	RateLimitDefault    string
	RateLimitNormal     string
	RateLimitSlow       string
	RateLimitStorageURL string
	RateLimitKeyPrefix  string
	TrustedProxies      []string
	LogLevel            string
}

// Rates are the parsed rate limit classes.
type Rates struct {
	Default ratelimit.Rate
	Normal  ratelimit.Rate
	Slow    ratelimit.Rate
}

// LoadDefaults populates Config with development defaults. SecretKey has no
// default and must be supplied.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8000"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = ""
	c.TokenLifetime = common.DefaultTokenLifetimeSeconds * time.Second
	c.RateLimitDefault = "1 per second"
	c.RateLimitNormal = "20 per minute"
	c.RateLimitSlow = "1 per minute"
	c.RateLimitStorageURL = ""
	c.RateLimitKeyPrefix = "rl"
	c.TrustedProxies = nil
	c.LogLevel = "info"
}

// LoadConfig builds a validated Config from defaults, dotenvFile and the
// process environment, the JSON file named by -c/-config, and args.
func LoadConfig(args []string, dotenvFile string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotenv(dotenvFile); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: secret key is required", common.ErrConfiguration)
	}
	if c.TokenLifetime < time.Second {
		return fmt.Errorf("%w: token lifetime must be at least 1s, got %s", common.ErrConfiguration, c.TokenLifetime)
	}
	if c.EndpointAddrHTTP == "" {
		return fmt.Errorf("%w: http address is required", common.ErrConfiguration)
	}
	if _, err := c.Rates(); err != nil {
		return err
	}
	return nil
}

// Rates parses the three rate limit strings.
func (c *Config) Rates() (Rates, error) {
	var r Rates
	for _, x := range []struct {
		name string
		in   string
		out  *ratelimit.Rate
	}{
		{"default", c.RateLimitDefault, &r.Default},
		{"normal", c.RateLimitNormal, &r.Normal},
		{"slow", c.RateLimitSlow, &r.Slow},
	} {
		rate, err := ratelimit.ParseRate(x.in)
		if err != nil {
			return Rates{}, fmt.Errorf("%w: %s rate limit: %w", common.ErrConfiguration, x.name, err)
		}
		*x.out = rate
	}
	return r, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLifetime accepts whole seconds ("600") or a Go duration ("10m").
func parseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return common.LifetimeFromSeconds(secs)
	}
	return time.ParseDuration(s)
}
