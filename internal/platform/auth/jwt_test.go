package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalVerifierRoundTrip(t *testing.T) {
	verifier, err := NewLocalVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := verifier.IssueSessionToken("acct-42", "someone@example.edu", "restaurant_admin", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UID != "acct-42" {
		t.Fatalf("unexpected uid %q", identity.UID)
	}
	if identity.Email != "someone@example.edu" {
		t.Fatalf("unexpected email %q", identity.Email)
	}
	if identity.Role != "restaurant_admin" {
		t.Fatalf("unexpected role %q", identity.Role)
	}
}

func TestLocalVerifierRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	issuer, err := NewLocalVerifier("test-secret", WithSessionClock(func() time.Time { return issuedAt }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueSessionToken("acct-42", "", "customer", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	later := issuedAt.Add(10 * time.Minute)
	verifier, err := NewLocalVerifier("test-secret", WithSessionClock(func() time.Time { return later }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLocalVerifierHonoursLeeway(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	issuer, err := NewLocalVerifier("test-secret", WithSessionClock(func() time.Time { return issuedAt }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueSessionToken("acct-42", "", "customer", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// 10s past expiry is inside the 30s skew window.
	justAfter := issuedAt.Add(time.Minute + 10*time.Second)
	verifier, err := NewLocalVerifier("test-secret", WithSessionClock(func() time.Time { return justAfter }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), token); err != nil {
		t.Fatalf("expected skew-tolerant accept, got %v", err)
	}

	wellAfter := issuedAt.Add(time.Minute + 45*time.Second)
	strict, err := NewLocalVerifier("test-secret", WithSessionClock(func() time.Time { return wellAfter }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := strict.Verify(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired beyond leeway, got %v", err)
	}

	tight, err := NewLocalVerifier("test-secret",
		WithSessionClock(func() time.Time { return justAfter }),
		WithSessionLeeway(5*time.Second),
	)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := tight.Verify(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired with tightened leeway, got %v", err)
	}
}

func TestLocalVerifierRejectsWrongSecret(t *testing.T) {
	issuer, err := NewLocalVerifier("secret-a")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueSessionToken("acct-42", "", "customer", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	verifier, err := NewLocalVerifier("secret-b")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLocalVerifierRequiresSubject(t *testing.T) {
	verifier, err := NewLocalVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.IssueSessionToken("", "", "customer", time.Hour); err == nil {
		t.Fatal("expected error for empty uid")
	}
}
