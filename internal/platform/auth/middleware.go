package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campusdesk/api/internal/platform/httpx"
)

const defaultVerifyTimeout = 5 * time.Second

// Authenticator wires token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
	timeout  time.Duration
}

// AuthenticatorOption customises Authenticator behaviour.
type AuthenticatorOption func(*Authenticator)

// WithVerificationTimeout bounds the time spent verifying a token.
func WithVerificationTimeout(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs the middleware around the given verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Require verifies the Authorization bearer token and stores the resulting
// identity on the request context. Role checks are deliberately absent here:
// authorisation happens against the account record, not token claims.
func (a *Authenticator) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(r.Context(), w, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				writeAuthError(r.Context(), w, "unauthenticated", "authentication service unavailable")
				return
			}

			ctx := r.Context()
			verifyCtx := ctx
			var cancel context.CancelFunc
			if a.timeout > 0 {
				verifyCtx, cancel = context.WithTimeout(ctx, a.timeout)
			}
			identity, err := a.verifier.Verify(verifyCtx, raw)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					writeAuthError(ctx, w, "token_expired", "credential expired")
				default:
					writeAuthError(ctx, w, "invalid_token", "credential verification failed")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusUnauthorized))
}
