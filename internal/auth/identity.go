package auth

import (
	"context"

	"github.com/vyrodovalexey/loangw/internal/auth/jwt"
)

// Identity is an authenticated caller.
type Identity struct {
	UserID   string
	Username string
}

// identityFromClaims maps verified claims to an identity.
func identityFromClaims(c *jwt.Claims) *Identity {
	return &Identity{
		UserID:   c.UserID,
		Username: c.Subject,
	}
}

type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
