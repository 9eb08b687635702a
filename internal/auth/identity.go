package auth

import (
	"context"

	"grocery/internal/models"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   int64
	Username string
	Role     models.Role
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// SameUser reports whether userID is the authenticated caller.
func SameUser(ctx context.Context, userID int64) bool {
	id, ok := IdentityFrom(ctx)
	return ok && id.UserID == userID
}
