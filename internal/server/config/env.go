package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/joho/godotenv"
)

const envPrefix = "BOOKSTORE_"

var lookupEnv = os.LookupEnv

// loadDotenv exports the variables of file into the process environment.
// Variables already set are left alone and a missing file is not an error.
func loadDotenv(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// parseEnv overlays BOOKSTORE_* variables onto config.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HTTP_ADDR":             &config.EndpointAddrHTTP,
		"GRPC_ADDR":             &config.EndpointAddrGRPC,
		"DATABASE_DSN":          &config.DatabaseDSN,
		"SECRET_KEY":            &config.SecretKey,
		"RATELIMIT_DEFAULT":     &config.RateLimitDefault,
		"RATELIMIT_NORMAL":      &config.RateLimitNormal,
		"RATELIMIT_SLOW":        &config.RateLimitSlow,
		"RATELIMIT_STORAGE_URL": &config.RateLimitStorageURL,
		"RATELIMIT_KEY_PREFIX":  &config.RateLimitKeyPrefix,
		"LOG_LEVEL":             &config.LogLevel,
	}
	for name, dst := range str {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "TOKEN_LIFETIME"); ok {
		d, err := parseLifetime(v)
		if err != nil {
			return fmt.Errorf("%w: %sTOKEN_LIFETIME: %w", common.ErrConfiguration, envPrefix, err)
		}
		config.TokenLifetime = d
	}

	if v, ok := lookup(envPrefix + "TRUSTED_PROXIES"); ok {
		config.TrustedProxies = splitList(v)
	}

	return nil
}
