// Package server wires the bookstore auth components together and runs the
// HTTP API and the internal gRPC service until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/logging"
	"github.com/dmitrijs2005/bookstore/internal/server/config"
	"github.com/dmitrijs2005/bookstore/internal/server/httpapi"
	"github.com/dmitrijs2005/bookstore/internal/server/metrics"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
	"github.com/dmitrijs2005/bookstore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookstore/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/bookstore/internal/server/grpc"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	rdb        *redis.Client
	memLimiter *ratelimit.MemoryLimiter
	router     *gin.Engine
	grpcServer *gs.GRPCServer
}

// NewApp opens storage, builds the services and both transports. The
// credential store is Postgres when DatabaseDSN is set and in-memory
// otherwise; the limiter is Redis when RateLimitStorageURL is set.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	rates, err := c.Rates()
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	var rm repomanager.RepositoryManager
	if c.DatabaseDSN != "" {
		app.db, rm, err = repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	} else {
		logger.Warn(ctx, "no database configured, users are kept in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	}

	var limiter ratelimit.Limiter
	if c.RateLimitStorageURL != "" {
		app.rdb, err = ratelimit.NewRedisClient(ctx, c.RateLimitStorageURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("rate limit storage init error: %w", err)
		}
		limiter = ratelimit.NewRedisLimiter(app.rdb)
	} else {
		app.memLimiter = ratelimit.NewMemoryLimiter()
		limiter = app.memLimiter
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	users, err := services.NewUserService(app.db, rm, c, services.WithLogger(logger), services.WithMetrics(m))
	if err != nil {
		app.Close()
		return nil, err
	}

	api := httpapi.NewAPI(users, limiter, rates,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(m, registry),
		httpapi.WithKeyPrefix(c.RateLimitKeyPrefix),
	)
	app.router, err = httpapi.NewRouter(api, c.TrustedProxies)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("%w: trusted proxies: %w", common.ErrConfiguration, err)
	}

	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, users,
		gs.WithRateLimit(limiter, rates.Normal, c.RateLimitKeyPrefix),
		gs.WithMetrics(m),
	)

	return app, nil
}

// Handler returns the HTTP handler.
func (app *App) Handler() http.Handler { return app.router }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (app *App) startHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runSweeper drops closed in-memory rate limit windows every interval.
func (app *App) runSweeper(ctx context.Context, interval time.Duration) {
	if app.memLimiter == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := app.memLimiter.Sweep(now); n > 0 {
				app.logger.Debug(ctx, "swept rate limit windows", "removed", n)
			}
		}
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the servers fails. It returns the first server error.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := app.startHTTPServer(ctx); err != nil {
			fail(fmt.Errorf("http server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			fail(fmt.Errorf("grpc server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		app.runSweeper(ctx, sweepInterval)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")

	return firstErr
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if app.rdb != nil {
		errs = append(errs, app.rdb.Close())
	}
	return errors.Join(errs...)
}
