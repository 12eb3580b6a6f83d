package common

import (
	"context"
	"testing"

	"github.com/cricksy/video-analysis/internal/interfaces"
)

func TestAuthContext_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if ac := AuthContextFromContext(ctx); ac != nil {
		t.Error("Expected nil AuthorizationContext from empty context")
	}

	ac := &interfaces.AuthorizationContext{UserID: "user-123", Roles: []string{"coach"}}
	ctx = WithAuthContext(ctx, ac)

	got := AuthContextFromContext(ctx)
	if got == nil {
		t.Fatal("Expected non-nil AuthorizationContext")
	}
	if got.UserID != "user-123" {
		t.Errorf("Expected user-123, got %s", got.UserID)
	}
	if !got.IsOwner("user-123") {
		t.Error("Expected IsOwner true for matching user")
	}
}

func TestResolveUserID_WithAuthContext(t *testing.T) {
	ctx := context.Background()

	if got := ResolveUserID(ctx); got != "" {
		t.Errorf("Expected empty string with no auth context, got %s", got)
	}

	ctx = WithAuthContext(ctx, &interfaces.AuthorizationContext{UserID: "user-456"})
	if got := ResolveUserID(ctx); got != "user-456" {
		t.Errorf("Expected user-456, got %s", got)
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("Expected empty request ID, got %s", got)
	}

	ctx = WithRequestID(ctx, "req-abc")
	if got := RequestIDFromContext(ctx); got != "req-abc" {
		t.Errorf("Expected req-abc, got %s", got)
	}
}
