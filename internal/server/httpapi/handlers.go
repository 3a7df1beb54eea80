package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/gin-gonic/gin"
)

func (a *API) entrance() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, successBody(a.endpoints))
	}
}

func (a *API) register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}

		u, err := a.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				c.JSON(http.StatusBadRequest, errorBody("User already exist"))
				return
			}
			a.logger.Error(c.Request.Context(), "register failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorBody("Internal error."))
			return
		}

		c.JSON(http.StatusCreated, successBody(UserResponse{ID: u.ID, Username: u.UserName, Email: u.Email}))
	}
}

// token issues a bearer token for the authenticated caller. An optional
// expires_in query parameter overrides the default lifetime, in seconds.
func (a *API) token() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			unauthorized(c)
			return
		}

		lifetime := a.users.TokenLifetime()
		if raw, set := c.GetQuery("expires_in"); set {
			secs, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				lifetime, err = common.LifetimeFromSeconds(secs)
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, errorBody("expires_in must be a positive number of seconds"))
				return
			}
		}

		tok, _, err := a.users.IssueToken(c.Request.Context(), id, lifetime)
		if err != nil {
			if errors.Is(err, common.ErrInvalidLifetime) {
				c.JSON(http.StatusBadRequest, errorBody(err.Error()))
				return
			}
			a.logger.Error(c.Request.Context(), "issue token failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorBody("Internal error."))
			return
		}

		c.JSON(http.StatusOK, TokenResponse{Token: tok, ExpiresIn: int64(lifetime / time.Second)})
	}
}

// userAuth checks credentials carried in the JSON body and answers with the
// resolved username. Other services use it to delegate authentication.
func (a *API) userAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UserAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}

		id, err := a.users.Authenticate(c.Request.Context(), req.UsernameOrToken, req.Password)
		if err != nil {
			if errors.Is(err, common.ErrorUnauthorized) {
				unauthorized(c)
				return
			}
			c.JSON(http.StatusInternalServerError, errorBody("Internal error."))
			return
		}

		setIdentity(c, id)
		c.JSON(http.StatusOK, successBody(id.UserName))
	}
}

func (a *API) me() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			unauthorized(c)
			return
		}
		c.JSON(http.StatusOK, successBody(UserResponse{ID: id.UserID, Username: id.UserName}))
	}
}
