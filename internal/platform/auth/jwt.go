package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultSessionLeeway = 30 * time.Second

// sessionClaims models the campus-issued session token payload.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// LocalVerifier validates HS256 session tokens minted by the campus portal.
// It backs AUTH_MODE=local deployments where Firebase is not available, such
// as the emulator suite and on-prem installs.
type LocalVerifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// LocalVerifierOption customises the verifier.
type LocalVerifierOption func(*LocalVerifier)

// WithSessionLeeway adjusts the accepted clock skew for exp/nbf checks.
func WithSessionLeeway(d time.Duration) LocalVerifierOption {
	return func(v *LocalVerifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// WithSessionClock injects a custom clock, primarily for tests.
func WithSessionClock(now func() time.Time) LocalVerifierOption {
	return func(v *LocalVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewLocalVerifier builds a verifier around the shared session secret.
func NewLocalVerifier(secret string, opts ...LocalVerifierOption) (*LocalVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: session secret is required")
	}

	verifier := &LocalVerifier{
		secret: []byte(secret),
		leeway: defaultSessionLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// Verify parses and validates the session token signature and time claims.
func (v *LocalVerifier) Verify(_ context.Context, raw string) (Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return Identity{}, ErrTokenInvalid
	}

	// Time claims are checked by hand below: the v4 parser validates against
	// the wall clock with no leeway, and this verifier needs both an injected
	// clock and tolerated skew.
	claims := &sessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	now := v.now()
	if !claims.VerifyExpiresAt(now.Add(-v.leeway), true) {
		return Identity{}, fmt.Errorf("%w: session token expired", ErrTokenExpired)
	}
	if !claims.VerifyNotBefore(now.Add(v.leeway), false) {
		return Identity{}, fmt.Errorf("%w: session token not yet valid", ErrTokenInvalid)
	}
	if !claims.VerifyIssuedAt(now.Add(v.leeway), false) {
		return Identity{}, fmt.Errorf("%w: session token issued in the future", ErrTokenInvalid)
	}

	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}

	return Identity{
		UID:   uid,
		Email: strings.TrimSpace(claims.Email),
		Role:  strings.TrimSpace(claims.Role),
	}, nil
}

// IssueSessionToken mints a signed session token. Only the local developer
// tooling and tests call this; production tokens come from the portal.
func (v *LocalVerifier) IssueSessionToken(uid, email, role string, ttl time.Duration) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", errors.New("auth: verifier not configured")
	}
	if strings.TrimSpace(uid) == "" {
		return "", errors.New("auth: uid is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := v.now()
	claims := &sessionClaims{
		Email: strings.TrimSpace(email),
		Role:  strings.TrimSpace(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(uid),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign session token: %w", err)
	}
	return signed, nil
}
