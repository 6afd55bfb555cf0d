package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile("does-not-exist.env"),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "campusdesk-test",
			"FIREBASE_PROJECT_ID":  "campusdesk-test",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080 got %s", cfg.Server.Port)
	}
	if cfg.Auth.Mode != AuthModeFirebase {
		t.Fatalf("expected firebase auth mode got %s", cfg.Auth.Mode)
	}
	if cfg.Notifications.Retention != 2*time.Minute {
		t.Fatalf("unexpected feed retention %s", cfg.Notifications.Retention)
	}
	if cfg.Notifications.MaxEvents != 500 {
		t.Fatalf("unexpected feed max events %d", cfg.Notifications.MaxEvents)
	}
}

func TestLoadMissingRequiredValues(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile("does-not-exist.env"),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError got %T", err)
	}
	fields := vErr.Fields()
	if len(fields) == 0 {
		t.Fatal("expected offending fields in validation error")
	}
}

func TestLoadLocalAuthRequiresSessionSecret(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile("does-not-exist.env"),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "campusdesk-test",
			"AUTH_MODE":            "local",
		}),
	)
	if err == nil {
		t.Fatal("expected missing SESSION_SECRET error")
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile("does-not-exist.env"),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "campusdesk-test",
			"AUTH_MODE":            "local",
			"SESSION_SECRET":       "dev-secret",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.SessionSecret != "dev-secret" {
		t.Fatalf("unexpected session secret %q", cfg.Auth.SessionSecret)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://session" {
			t.Fatalf("unexpected secret ref %s", ref)
		}
		return "s3cret", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile("does-not-exist.env"),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "campusdesk-test",
			"AUTH_MODE":            "local",
			"SESSION_SECRET":       "secret://session",
		}),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.SessionSecret != "s3cret" {
		t.Fatalf("expected resolved secret got %q", cfg.Auth.SessionSecret)
	}
}
