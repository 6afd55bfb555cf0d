package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated caller extracted from a verified token.
//
// Role carries whatever role claim the token happened to include. It is
// advisory only: authorisation decisions always re-read the account record,
// so a stale or forged claim never widens access.
type Identity struct {
	UID   string
	Email string
	Role  string
}

// HasUID reports whether the identity carries a usable subject.
func (i Identity) HasUID() bool {
	return strings.TrimSpace(i.UID) != ""
}

type contextKey string

const identityContextKey contextKey = "github.com/campusdesk/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || !identity.HasUID() {
		return Identity{}, false
	}
	return identity, true
}
