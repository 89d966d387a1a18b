package shared

import (
	"context"

	"github.com/gatehouse-io/gatehouse/internal/scope"
)

type principalContextKey struct{}

type accessScopeContextKey struct{}

// ContextWithPrincipal stores the authenticated principal ID in context.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalFromContext extracts the principal ID from context. The empty
// string means no principal is attached.
func PrincipalFromContext(ctx context.Context) string {
	principalID, _ := ctx.Value(principalContextKey{}).(string)
	return principalID
}

// ContextWithAccessScope stores the request's resolved access context.
func ContextWithAccessScope(ctx context.Context, key scope.Key) context.Context {
	return context.WithValue(ctx, accessScopeContextKey{}, key)
}

// AccessScopeFromContext extracts the access context. A request without org
// or branch headers resolves to the global (zero) key.
func AccessScopeFromContext(ctx context.Context) scope.Key {
	key, _ := ctx.Value(accessScopeContextKey{}).(scope.Key)
	return key
}
