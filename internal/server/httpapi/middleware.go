package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/logging"
	"github.com/dmitrijs2005/bookstore/internal/server/models"
	"github.com/dmitrijs2005/bookstore/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	keyRequestID = "request_id"
	keyIdentity  = "identity"
)

// RequestID propagates X-Request-ID or assigns a new UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// AccessLog logs every request once it has been served.
func AccessLog(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(keyRequestID),
			"client_ip", c.ClientIP(),
		)
	}
}

// Authenticate resolves the caller from the Authorization header and stores
// the identity in both the gin context and the request context.
func (a *API) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		usernameOrToken, password, ok := credentials(c.Request)
		if !ok {
			a.logger.Warn(c.Request.Context(), "authentication failed", "reason", "missing_credentials")
			unauthorized(c)
			return
		}

		id, err := a.users.Authenticate(c.Request.Context(), usernameOrToken, password)
		if err != nil {
			if errors.Is(err, common.ErrorUnauthorized) {
				unauthorized(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal error."))
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// credentials reads Basic (username or token, password) or Bearer (token)
// credentials.
func credentials(r *http.Request) (string, string, bool) {
	if u, p, ok := r.BasicAuth(); ok {
		return u, p, u != ""
	}

	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), "", true
	}

	return "", "", false
}

func setIdentity(c *gin.Context, id models.Identity) {
	c.Set(keyIdentity, id)
	c.Request = c.Request.WithContext(services.WithIdentity(c.Request.Context(), id))
}

func identity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(keyIdentity)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="bookstore"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Authentication failed."))
}

// RateLimit enforces the quota of class on route. The key is the
// authenticated username when there is one and the client address otherwise.
// Limiter backend errors let the request through.
func (a *API) RateLimit(class, route string) gin.HandlerFunc {
	rate := a.rates[class]

	return func(c *gin.Context) {
		keyKind, key := "origin", c.ClientIP()
		if id, ok := identity(c); ok {
			keyKind, key = "user", id.UserName
		}

		fullKey := fmt.Sprintf("%s:%s:%s:%s", a.keyPrefix, class, route, key)

		d, err := a.limiter.Allow(c.Request.Context(), fullKey, rate)
		if err != nil {
			a.logger.Error(c.Request.Context(), "rate limiter unavailable", "error", err, "class", class)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			a.metrics.RecordRateLimitRejection(class)
			a.logger.Info(c.Request.Context(), "rate limit exceeded", "class", class, "key_kind", keyKind, "route", route)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorBody(fmt.Sprintf("Rate limit exceeded: %s", rate)))
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
