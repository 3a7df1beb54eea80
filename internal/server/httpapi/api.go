// Package httpapi exposes the authentication service over HTTP with gin.
//
// Every route is declared in one table that names its rate limit class and
// whether it needs an authenticated caller. Protected routes authenticate
// before they are rate limited so that their quota is keyed by username;
// public routes are keyed by client address.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/logging"
	"github.com/dmitrijs2005/bookstore/internal/server/config"
	"github.com/dmitrijs2005/bookstore/internal/server/metrics"
	"github.com/dmitrijs2005/bookstore/internal/server/models"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
	"github.com/dmitrijs2005/bookstore/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserService is the part of services.UserService the handlers use.
type UserService interface {
	services.Authenticator
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	IssueToken(ctx context.Context, id models.Identity, lifetime time.Duration) (string, time.Time, error)
	TokenLifetime() time.Duration
}

// Rate limit classes.
const (
	ClassDefault = "default"
	ClassNormal  = "normal"
	ClassSlow    = "slow"
)

type API struct {
	users     UserService
	limiter   ratelimit.Limiter
	rates     map[string]ratelimit.Rate
	keyPrefix string
	logger    logging.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	endpoints []EndpointInfo
}

type Option func(*API)

func WithLogger(l logging.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithMetrics records rejections on m and serves g on GET /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(a *API) {
		a.metrics = m
		a.gatherer = g
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(a *API) { a.keyPrefix = prefix }
}

func NewAPI(users UserService, limiter ratelimit.Limiter, rates config.Rates, opts ...Option) *API {
	byteLengthValidators()

	a := &API{
		users:   users,
		limiter: limiter,
		rates: map[string]ratelimit.Rate{
			ClassDefault: rates.Default,
			ClassNormal:  rates.Normal,
			ClassSlow:    rates.Slow,
		},
		keyPrefix: "rl",
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("module", "http_api")

	for _, rt := range routes {
		a.endpoints = append(a.endpoints, EndpointInfo{URL: rt.path, Methods: rt.methods, RequireLogin: rt.requireLogin})
	}
	return a
}

type route struct {
	methods      []string
	path         string
	class        string
	requireLogin bool
	handler      func(a *API) gin.HandlerFunc
}

var routes = []route{
	{methods: []string{http.MethodGet}, path: "/", class: ClassDefault, handler: (*API).entrance},
	{methods: []string{http.MethodPost}, path: "/users", class: ClassNormal, handler: (*API).register},
	{methods: []string{http.MethodGet}, path: "/token", class: ClassSlow, requireLogin: true, handler: (*API).token},
	{methods: []string{http.MethodGet, http.MethodPost}, path: "/user-auth", class: ClassNormal, handler: (*API).userAuth},
	{methods: []string{http.MethodGet}, path: "/me", class: ClassNormal, requireLogin: true, handler: (*API).me},
}

// NewRouter builds the gin engine. trustedProxies lists the addresses whose
// X-Forwarded-For header is believed when resolving the client address.
func NewRouter(a *API, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery(), RequestID(), AccessLog(a.logger))

	for _, rt := range routes {
		chain := make([]gin.HandlerFunc, 0, 3)
		if rt.requireLogin {
			chain = append(chain, a.Authenticate())
		}
		chain = append(chain, a.RateLimit(rt.class, rt.path), rt.handler(a))

		for _, m := range rt.methods {
			r.Handle(m, rt.path, chain...)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if a.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Not found."))
	})

	return r, nil
}
