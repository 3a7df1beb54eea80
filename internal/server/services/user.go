// Package services contains server-side business logic. This file implements
// UserService, which registers users, issues bearer tokens and authenticates
// callers by token or by username and password.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/dmitrijs2005/bookstore/internal/dbx"
	"github.com/dmitrijs2005/bookstore/internal/logging"
	"github.com/dmitrijs2005/bookstore/internal/server/auth"
	"github.com/dmitrijs2005/bookstore/internal/server/config"
	"github.com/dmitrijs2005/bookstore/internal/server/metrics"
	"github.com/dmitrijs2005/bookstore/internal/server/models"
	"github.com/dmitrijs2005/bookstore/internal/server/password"
	"github.com/dmitrijs2005/bookstore/internal/server/repositories/repomanager"
)

// Authenticator resolves a (username or token, password) pair to an Identity.
// Every failure wraps common.ErrorUnauthorized together with its cause.
type Authenticator interface {
	Authenticate(ctx context.Context, usernameOrToken, password string) (models.Identity, error)
}

// UserService provides the authentication operations:
//   - Register: create users
//   - IssueToken: mint bearer tokens for an authenticated identity
//   - Authenticate: resolve a token or username/password to an identity
type UserService struct {
	db            dbx.DBTX
	repomanager   repomanager.RepositoryManager
	codec         *auth.Codec
	hasher        *password.Hasher
	tokenLifetime time.Duration
	dummyHash     string
	logger        logging.Logger
	metrics       *metrics.Metrics
}

var _ Authenticator = (*UserService)(nil)

type Option func(*UserService)

func WithLogger(l logging.Logger) Option {
	return func(s *UserService) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *UserService) { s.metrics = m }
}

func WithHasher(h *password.Hasher) Option {
	return func(s *UserService) { s.hasher = h }
}

// WithClock makes token issuance and verification read time from now.
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.codec = s.codec.WithClock(now) }
}

// NewUserService constructs a UserService using repositories and server
// config. It fails when cfg carries no signing secret.
func NewUserService(db dbx.DBTX, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*UserService, error) {
	codec, err := auth.NewCodec([]byte(cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	s := &UserService{
		db:            db,
		repomanager:   m,
		codec:         codec,
		hasher:        password.NewHasher(0),
		tokenLifetime: cfg.TokenLifetime,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tokenLifetime <= 0 {
		s.tokenLifetime = common.DefaultTokenLifetimeSeconds * time.Second
	}

	// Unknown usernames are checked against this hash so that they cost as
	// much as a wrong password.
	s.dummyHash, err = s.hasher.Hash("bookstore-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.logger = s.logger.With("module", "user_service")

	return s, nil
}

// TokenLifetime is the lifetime used when IssueToken is given zero.
func (s *UserService) TokenLifetime() time.Duration { return s.tokenLifetime }

// Register creates a user with a freshly hashed password.
func (s *UserService) Register(ctx context.Context, username, email, plaintext string) (*models.User, error) {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", common.ErrorInternal, err)
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, &models.User{UserName: username, Email: email, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID, "username", u.UserName)
	return u, nil
}

// IssueToken mints a token for id. A zero lifetime selects the configured
// default; a negative one is rejected with common.ErrInvalidLifetime.
func (s *UserService) IssueToken(ctx context.Context, id models.Identity, lifetime time.Duration) (string, time.Time, error) {
	if lifetime == 0 {
		lifetime = s.tokenLifetime
	}

	token, expiresAt, err := s.codec.Issue(id.UserID, lifetime)
	if err != nil {
		return "", time.Time{}, err
	}

	s.metrics.RecordTokenIssued()
	s.logger.Debug(ctx, "token issued", "user_id", id.UserID, "expires_at", expiresAt)
	return token, expiresAt, nil
}

// Authenticate first treats usernameOrToken as a bearer token; a valid token
// for an existing user succeeds and password is not consulted. Otherwise
// usernameOrToken is taken as a username and password is checked against
// the stored hash.
func (s *UserService) Authenticate(ctx context.Context, usernameOrToken, password string) (models.Identity, error) {
	repo := s.repomanager.Users(s.db)

	userID, tokenErr := s.codec.Verify(usernameOrToken)
	tokenOwnerMissing := false
	if tokenErr == nil {
		user, err := repo.GetUserByID(ctx, userID)
		switch {
		case err == nil:
			return s.succeed(ctx, user.Identity(), "token"), nil
		case errors.Is(err, common.ErrorNotFound):
			tokenOwnerMissing = true
		default:
			return models.Identity{}, s.internal(ctx, err)
		}
	}

	user, err := repo.GetUserByLogin(ctx, usernameOrToken)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return models.Identity{}, s.internal(ctx, err)
		}

		s.hasher.Verify(password, s.dummyHash)

		cause := common.ErrCredentialNotFound
		switch {
		case tokenOwnerMissing:
		case errors.Is(tokenErr, common.ErrTokenExpired):
			cause = common.ErrTokenExpired
		case looksLikeToken(usernameOrToken):
			cause = common.ErrInvalidToken
		}
		return models.Identity{}, s.fail(ctx, cause)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.Identity{}, s.fail(ctx, common.ErrWrongPassword)
	}

	return s.succeed(ctx, user.Identity(), "password"), nil
}

// --- helpers below ---

// looksLikeToken reports whether s has the three dot-separated segments of a
// compact JWT. Usernames may contain dots, so this only picks the failure
// label.
func looksLikeToken(s string) bool {
	return strings.Count(s, ".") == 2 && len(s) > 20
}

func (s *UserService) succeed(ctx context.Context, id models.Identity, method string) models.Identity {
	s.metrics.RecordAuthSuccess()
	s.logger.Debug(ctx, "authenticated", "user_id", id.UserID, "method", method)
	return id
}

func (s *UserService) fail(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", common.ErrorUnauthorized, cause)
	reason := common.AuthFailureReason(err)
	s.metrics.RecordAuthFailure(reason)
	s.logger.Warn(ctx, "authentication failed", "reason", reason)
	return err
}

func (s *UserService) internal(ctx context.Context, err error) error {
	s.logger.Error(ctx, "credential lookup failed", "error", err)
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}
