// Package identity resolves the owner identity that partitions stored records.
// Tokens are issued and verified by the remote auth service; here they are
// only decoded to read the subject claim.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity errors.
var (
	ErrNoIdentity   = errors.New("no owner identity: set --owner or a login token")
	ErrInvalidToken = errors.New("invalid login token")
	ErrTokenExpired = errors.New("login token has expired")
)

// OwnerFromToken returns the subject claim of a JWT. The signature is not
// checked; an expired token is rejected.
func OwnerFromToken(token string, now time.Time) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", ErrNoIdentity
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}
	return subject, nil
}

// Resolve picks the owner for this invocation. An explicit owner wins over
// the token's subject.
func Resolve(explicitOwner, token string, now time.Time) (string, error) {
	if owner := strings.TrimSpace(explicitOwner); owner != "" {
		return owner, nil
	}
	return OwnerFromToken(token, now)
}
