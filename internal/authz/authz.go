// Package authz verifies bearer JWTs and produces the
// interfaces.AuthorizationContext the core consults for ownership checks.
// Issuing tokens, login flows, and OAuth providers are external
// collaborators (spec §1 non-goals) — this package only verifies.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/interfaces"
)

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier from the configured JWT secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claims struct {
	UserID string   `json:"sub"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// VerifyBearer parses an "Authorization: Bearer <token>" header value and
// returns the resulting AuthorizationContext.
func (v *Verifier) VerifyBearer(header string) (*interfaces.AuthorizationContext, error) {
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if token == "" || token == header {
		return nil, fmt.Errorf("%w: missing bearer token", apperrors.ErrForbidden)
	}
	return v.Verify(token)
}

// Verify parses and validates a raw JWT string.
func (v *Verifier) Verify(tokenString string) (*interfaces.AuthorizationContext, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", apperrors.ErrForbidden)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrForbidden, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", apperrors.ErrForbidden)
	}

	return &interfaces.AuthorizationContext{UserID: c.UserID, Roles: c.Roles}, nil
}
