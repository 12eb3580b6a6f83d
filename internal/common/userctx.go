package common

import (
	"context"

	"github.com/cricksy/video-analysis/internal/interfaces"
)

type contextKey int

const (
	authContextKey contextKey = iota
	requestIDKey
)

// WithAuthContext stores the request's AuthorizationContext, produced by
// authz.Verifier from the bearer token, on the request context.
func WithAuthContext(ctx context.Context, ac *interfaces.AuthorizationContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthContextFromContext retrieves the AuthorizationContext, or nil if the
// request carried no valid bearer token.
func AuthContextFromContext(ctx context.Context) *interfaces.AuthorizationContext {
	ac, _ := ctx.Value(authContextKey).(*interfaces.AuthorizationContext)
	return ac
}

// ResolveUserID returns the caller's user ID from the request's auth
// context, or "" when no auth context is present.
func ResolveUserID(ctx context.Context) string {
	if ac := AuthContextFromContext(ctx); ac != nil {
		return ac.UserID
	}
	return ""
}

// WithRequestID stores a correlation ID on the request context for log
// fields and the per-job trail (spec §12).
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the correlation ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
