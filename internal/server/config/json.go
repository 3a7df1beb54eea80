package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/flagx"
	"github.com/dmitrijs2005/bookstore/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations may be
// written as strings such as "10m" or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	TokenLifetime       timex.Duration `json:"token_lifetime"`
	RateLimitDefault    string         `json:"ratelimit_default"`
	RateLimitNormal     string         `json:"ratelimit_normal"`
	RateLimitSlow       string         `json:"ratelimit_slow"`
	RateLimitStorageURL string         `json:"ratelimit_storage_url"`
	RateLimitKeyPrefix  string         `json:"ratelimit_key_prefix"`
	TrustedProxies      []string       `json:"trusted_proxies"`
	LogLevel            string         `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config, if any, onto config. Keys
// absent from the file keep their current values.
func parseJSON(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFile(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrConfiguration, jsonConfigFile, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RateLimitDefault, c.RateLimitDefault)
	setString(&config.RateLimitNormal, c.RateLimitNormal)
	setString(&config.RateLimitSlow, c.RateLimitSlow)
	setString(&config.RateLimitStorageURL, c.RateLimitStorageURL)
	setString(&config.RateLimitKeyPrefix, c.RateLimitKeyPrefix)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenLifetime.Duration != 0 {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
