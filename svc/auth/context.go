package auth

import (
	"context"
)

type userContextKey struct{}

// SetUserToContext stores the authenticated user for the rest of the middleware chain.
func SetUserToContext(ctx context.Context, user *CachedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUserFromContext retrieves the authenticated user from context.
// Returns nil if no user was stored.
func GetUserFromContext(ctx context.Context) *CachedUser {
	user, _ := ctx.Value(userContextKey{}).(*CachedUser)
	return user
}
