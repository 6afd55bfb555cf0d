package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
)

var (
	// ErrTokenExpired signals that the presented credential has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the presented credential failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier turns a raw bearer token into an authenticated identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

// FirebaseVerifier validates Firebase ID tokens via the Admin SDK.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier initialises the Firebase Admin app for the given project.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify decodes and validates the Firebase ID token.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	if v == nil || v.client == nil {
		return Identity{}, ErrTokenInvalid
	}

	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		switch {
		case firebaseauth.IsIDTokenExpired(err):
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}

	return Identity{
		UID:   token.UID,
		Email: claimAsString(token.Claims, "email"),
		Role:  claimAsString(token.Claims, "role"),
	}, nil
}

func claimAsString(claims map[string]interface{}, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
