package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultAuthMode          = AuthModeFirebase
	defaultFeedRetention     = 2 * time.Minute
	defaultFeedSweepInterval = 30 * time.Second
	defaultFeedMaxEvents     = 500
)

// Auth modes select how bearer tokens are verified.
const (
	// AuthModeFirebase verifies tokens against Firebase Authentication.
	AuthModeFirebase = "firebase"
	// AuthModeLocal verifies HS256 session tokens signed with SESSION_SECRET.
	AuthModeLocal = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firebase      FirebaseConfig
	Firestore     FirestoreConfig
	Auth          AuthConfig
	Notifications NotificationConfig
	Events        EventConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig selects the credential verification path.
type AuthConfig struct {
	Mode          string
	SessionSecret string
}

// NotificationConfig tunes the in-memory operator feed.
type NotificationConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
	MaxEvents     int
}

// EventConfig configures the optional Pub/Sub order event topic.
type EventConfig struct {
	TopicID string
}

// SecretResolver resolves secret:// references to their plaintext values.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(ctx context.Context, ref string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.fields, ", "))
}

// Fields returns the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

type loadOptions struct {
	envFile      string
	envOverrides map[string]string
	skipSystem   bool
	resolver     SecretResolver
}

// Option customises configuration loading.
type Option func(*loadOptions)

// WithEnvFile overrides the .env file consulted for local development.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values, taking precedence over the environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loadOptions) {
		o.envOverrides = values
	}
}

// WithoutSystemEnv ignores process environment variables; used in tests.
func WithoutSystemEnv() Option {
	return func(o *loadOptions) {
		o.skipSystem = true
	}
}

// WithSecretResolver resolves secret:// references during loading.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loadOptions) {
		o.resolver = resolver
	}
}

// Load reads configuration from the environment, optionally resolving
// secret references, and validates required values. Absence of a required
// value is a startup failure, never a per-request failure.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	values := map[string]string{}
	if fileVals, err := loadDotEnv(o.envFile); err == nil {
		for k, v := range fileVals {
			values[k] = v
		}
	}
	if !o.skipSystem {
		for _, kv := range os.Environ() {
			if idx := strings.IndexByte(kv, '='); idx > 0 {
				values[kv[:idx]] = kv[idx+1:]
			}
		}
	}
	for k, v := range o.envOverrides {
		values[k] = v
	}

	lookup := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			Mode:          strings.ToLower(stringWithDefault(lookup, "AUTH_MODE", defaultAuthMode)),
			SessionSecret: stringWithDefault(lookup, "SESSION_SECRET", ""),
		},
		Notifications: NotificationConfig{
			Retention:     durationWithDefault(lookup, "FEED_RETENTION", defaultFeedRetention),
			SweepInterval: durationWithDefault(lookup, "FEED_SWEEP_INTERVAL", defaultFeedSweepInterval),
			MaxEvents:     intWithDefault(lookup, "FEED_MAX_EVENTS", defaultFeedMaxEvents),
		},
		Events: EventConfig{
			TopicID: stringWithDefault(lookup, "ORDER_EVENTS_TOPIC", ""),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	if o.resolver != nil {
		secret, err := resolveSecret(ctx, cfg.Auth.SessionSecret, o.resolver)
		if err != nil {
			return Config{}, err
		}
		cfg.Auth.SessionSecret = secret
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	resolved, err := resolver.ResolveSecret(ctx, value)
	if err != nil {
		return "", fmt.Errorf("config: resolve secret reference: %w", err)
	}
	return resolved, nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "secret://")
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		missing = append(missing, "FIRESTORE_PROJECT_ID")
	}

	switch cfg.Auth.Mode {
	case AuthModeFirebase:
		if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	case AuthModeLocal:
		if strings.TrimSpace(cfg.Auth.SessionSecret) == "" {
			missing = append(missing, "SESSION_SECRET")
		}
	default:
		return &ValidationError{fields: []string{"AUTH_MODE"}}
	}

	if cfg.Notifications.Retention <= 0 {
		missing = append(missing, "FEED_RETENTION")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config: env file path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}
