package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/flagx"
)

var knownFlags = []string{"-a", "-g", "-d", "-s", "-t", "-l", "-n", "-w", "-r", "-k", "-x", "-v"}

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address (e.g. ":8000")
//	-g string   gRPC bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN; empty keeps users in memory
//	-s string   token signing secret
//	-t int      default token lifetime, seconds
//	-l string   default rate limit (e.g. "1 per second")
//	-n string   normal rate limit
//	-w string   slow rate limit
//	-r string   rate limit storage URL (redis://...); empty keeps windows in memory
//	-k string   rate limit key prefix
//	-x string   comma-separated trusted proxy addresses
//	-v string   log level
//
// Unknown flags are filtered out with flagx.FilterArgs so that -c/-config
// and flags owned by other components do not fail the parse.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "http address")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "grpc address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	lifetime := fs.Int64("t", int64(config.TokenLifetime/time.Second), "token lifetime (in seconds)")

	fs.StringVar(&config.RateLimitDefault, "l", config.RateLimitDefault, "default rate limit")
	fs.StringVar(&config.RateLimitNormal, "n", config.RateLimitNormal, "normal rate limit")
	fs.StringVar(&config.RateLimitSlow, "w", config.RateLimitSlow, "slow rate limit")
	fs.StringVar(&config.RateLimitStorageURL, "r", config.RateLimitStorageURL, "rate limit storage URL")
	fs.StringVar(&config.RateLimitKeyPrefix, "k", config.RateLimitKeyPrefix, "rate limit key prefix")

	proxies := fs.String("x", strings.Join(config.TrustedProxies, ","), "trusted proxies")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	var lifetimeErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenLifetime, lifetimeErr = common.LifetimeFromSeconds(*lifetime)
		case "x":
			config.TrustedProxies = splitList(*proxies)
		}
	})
	if lifetimeErr != nil {
		return fmt.Errorf("%w: -t: %w", common.ErrConfiguration, lifetimeErr)
	}

	return nil
}
