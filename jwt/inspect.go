package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be decoded at all.
var ErrMalformed = errors.New("jwt: malformed token")

// Claims is the subset of registered claims the client cares about.
type Claims struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}

// Inspect decodes the registered claims of token without checking its
// signature or validity window.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, ErrMalformed
	}

	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &registered); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}

	out := &Claims{
		Subject: registered.Subject,
		ID:      registered.ID,
	}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time
	}
	return out, nil
}

// ExpiresAt is shorthand for Inspect followed by HasExpiry.
func ExpiresAt(token string) (time.Time, bool) {
	c, err := Inspect(token)
	if err != nil || !c.HasExpiry() {
		return time.Time{}, false
	}
	return c.ExpiresAt, true
}
