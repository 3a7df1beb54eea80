// Package auth issues and verifies signed, time-limited bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Codec signs tokens with a process-wide HMAC secret. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a Codec for secretKey. An empty key is a configuration
// error.
func NewCodec(secretKey []byte) (*Codec, error) {
	if len(secretKey) == 0 {
		return nil, fmt.Errorf("%w: empty token secret", common.ErrConfiguration)
	}
	return &Codec{secret: secretKey, now: time.Now}, nil
}

// WithClock returns a copy of c that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue returns a token binding userID to now+lifetime together with that
// expiry instant.
func (c *Codec) Issue(userID int64, lifetime time.Duration) (string, time.Time, error) {
	if lifetime < time.Second {
		return "", time.Time{}, common.ErrInvalidLifetime
	}

	issuedAt := c.now()
	// Claims carry whole seconds; report the instant the token actually holds.
	expiresAt := jwt.NewNumericDate(issuedAt.Add(lifetime))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: expiresAt,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt.Time, nil
}

// Verify returns the user id carried by tokenString. A well-formed, correctly
// signed token past its expiry yields common.ErrTokenExpired; anything else
// that does not check out yields common.ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}

	return userID, nil
}
