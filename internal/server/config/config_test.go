package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8000", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "", c.DatabaseDSN)
	assert.Equal(t, "", c.SecretKey)
	assert.Equal(t, 600*time.Second, c.TokenLifetime)
	assert.Equal(t, "1 per second", c.RateLimitDefault)
	assert.Equal(t, "20 per minute", c.RateLimitNormal)
	assert.Equal(t, "1 per minute", c.RateLimitSlow)
	assert.Equal(t, "rl", c.RateLimitKeyPrefix)
	assert.Equal(t, "info", c.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		c.SecretKey = "k"
		return c
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.SecretKey = "" }},
		{"zero lifetime", func(c *Config) { c.TokenLifetime = 0 }},
		{"negative lifetime", func(c *Config) { c.TokenLifetime = -time.Second }},
		{"sub-second lifetime", func(c *Config) { c.TokenLifetime = 500 * time.Millisecond }},
		{"missing http address", func(c *Config) { c.EndpointAddrHTTP = "" }},
		{"bad default rate", func(c *Config) { c.RateLimitDefault = "lots" }},
		{"bad normal rate", func(c *Config) { c.RateLimitNormal = "20 per fortnight" }},
		{"bad slow rate", func(c *Config) { c.RateLimitSlow = "0 per minute" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			require.ErrorIs(t, c.Validate(), common.ErrConfiguration)
		})
	}
}

func TestRates(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	r, err := c.Rates()
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Rate{Limit: 1, Window: time.Second}, r.Default)
	assert.Equal(t, ratelimit.Rate{Limit: 20, Window: time.Minute}, r.Normal)
	assert.Equal(t, ratelimit.Rate{Limit: 1, Window: time.Minute}, r.Slow)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()

	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte(
		"BOOKSTORE_SECRET_KEY=from-dotenv\nBOOKSTORE_RATELIMIT_SLOW=2 per minute\n"), 0o600))

	t.Setenv("BOOKSTORE_HTTP_ADDR", ":7000")
	t.Setenv("BOOKSTORE_GRPC_ADDR", ":7001")
	t.Setenv("BOOKSTORE_SECRET_KEY", "from-env")
	t.Cleanup(func() { os.Unsetenv("BOOKSTORE_RATELIMIT_SLOW") })

	jsonPath := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"endpoint_addr_grpc": ":9001",
		"token_lifetime":     "5m",
	})

	cfg, err := LoadConfig([]string{"-c", jsonPath, "-a", ":9000"}, dotenv)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.EndpointAddrHTTP, "flag beats env")
	assert.Equal(t, ":9001", cfg.EndpointAddrGRPC, "json beats env")
	assert.Equal(t, "from-env", cfg.SecretKey, "process env beats .env")
	assert.Equal(t, "2 per minute", cfg.RateLimitSlow, ".env fills unset variables")
	assert.Equal(t, 5*time.Minute, cfg.TokenLifetime)
	assert.Equal(t, "20 per minute", cfg.RateLimitNormal, "defaults survive")
}

func TestLoadConfig_MissingSecretIsFatal(t *testing.T) {
	_, err := LoadConfig(nil, "")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLoadConfig_MissingDotenvIsIgnored(t *testing.T) {
	cfg, err := LoadConfig([]string{"-s", "k"}, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.SecretKey)
}
