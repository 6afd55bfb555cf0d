package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/campusdesk/api/internal/platform/httpx"
)

const defaultReadyTimeout = 5 * time.Second

// ReadinessCheck reports whether downstream dependencies can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves the /healthz and /readyz probes.
type HealthHandlers struct {
	check   ReadinessCheck
	clock   func() time.Time
	timeout time.Duration
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithReadinessCheck wires the dependency probe used by /readyz.
func WithReadinessCheck(check ReadinessCheck) HealthOption {
	return func(h *HealthHandlers) {
		h.check = check
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadyTimeout bounds how long /readyz waits on the dependency probe.
func WithReadyTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandlers) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHealthHandlers constructs health handlers with sensible defaults.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:   time.Now,
		timeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.clock().UTC().Format(time.RFC3339Nano),
	})
}

// Readyz reports whether downstream dependencies are reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := h.check(checkCtx); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("not_ready", err.Error(), http.StatusServiceUnavailable))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.clock().UTC().Format(time.RFC3339Nano),
	})
}
