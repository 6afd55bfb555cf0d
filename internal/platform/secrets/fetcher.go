package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	secretScheme        = "secret://"
	defaultVersion      = "latest"
	defaultFallbackPath = ".secrets.local"
)

// ErrSecretNotFound indicates the referenced secret does not exist in any source.
var ErrSecretNotFound = errors.New("secrets: secret not found")

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references via Google Secret Manager with an
// optional dotfile fallback for local development.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFallbackFile points local development at a plaintext key=value file.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) {
		if strings.TrimSpace(path) != "" {
			f.fallbackPath = path
		}
	}
}

// WithClient injects a pre-built Secret Manager client; mainly for tests.
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher constructs a Fetcher scoped to the given GCP project. The Secret
// Manager client is created lazily on first remote resolution.
func NewFetcher(projectID string, opts ...Option) *Fetcher {
	f := &Fetcher{
		projectID:    strings.TrimSpace(projectID),
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
		cache:        map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Resolve returns the plaintext value for a secret://name[@version] reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	name, version, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	cacheKey := name + "@" + version
	f.mu.RLock()
	if v, ok := f.cache[cacheKey]; ok {
		f.mu.RUnlock()
		return v, nil
	}
	f.mu.RUnlock()

	if v, ok := f.fallbackValue(name); ok {
		f.store(cacheKey, v)
		return v, nil
	}

	value, err := f.fetchRemote(ctx, name, version)
	if err != nil {
		return "", err
	}
	f.store(cacheKey, value)
	return value, nil
}

// Close releases the Secret Manager client when owned by this fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) fetchRemote(ctx context.Context, name, version string) (string, error) {
	if f.projectID == "" {
		return "", fmt.Errorf("%w: %s (no project configured)", ErrSecretNotFound, name)
	}

	if f.client == nil {
		client, err := clientFactory(ctx)
		if err != nil {
			return "", fmt.Errorf("secrets: create client: %w", err)
		}
		f.client = client
		f.ownsClient = true
	}

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version),
	}
	resp, err := f.client.AccessSecretVersion(ctx, req, gax.WithTimeout(10*time.Second))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("%w: %s (empty payload)", ErrSecretNotFound, name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) fallbackValue(name string) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = loadFallbackFile(f.fallbackPath, f.logger)
	})
	v, ok := f.fallbackVals[name]
	return v, ok
}

func (f *Fetcher) store(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func parseReference(ref string) (name, version string, err error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, secretScheme) {
		return "", "", fmt.Errorf("secrets: invalid reference %q", ref)
	}
	rest := strings.TrimPrefix(trimmed, secretScheme)
	version = defaultVersion
	if idx := strings.IndexByte(rest, '@'); idx >= 0 {
		version = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}
	name = strings.TrimSpace(rest)
	if name == "" || version == "" {
		return "", "", fmt.Errorf("secrets: invalid reference %q", ref)
	}
	return name, version, nil
}

func loadFallbackFile(path string, logger *zap.Logger) map[string]string {
	values := map[string]string{}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer func() {
		_ = file.Close()
	}()

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
		values[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("secrets: fallback file read error", zap.Error(err))
	}
	return values
}
