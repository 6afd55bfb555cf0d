package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/campusdesk/api/internal/platform/observability"

// TransitionMetrics counts order transition outcomes for dashboards and alerts.
type TransitionMetrics struct {
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	enabled  bool
}

// NewTransitionMetrics registers the transition counters on the global meter provider.
func NewTransitionMetrics() *TransitionMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	accepted, errA := meter.Int64Counter("order.transitions.accepted",
		metric.WithDescription("Accepted order status/priority transitions"))
	rejected, errR := meter.Int64Counter("order.transitions.rejected",
		metric.WithDescription("Rejected order transition attempts"))

	return &TransitionMetrics{
		accepted: accepted,
		rejected: rejected,
		enabled:  errA == nil && errR == nil,
	}
}

// RecordAccepted increments the accepted counter for the given order kind.
func (m *TransitionMetrics) RecordAccepted(ctx context.Context, kind string, status string) {
	if m == nil || !m.enabled {
		return
	}
	m.accepted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.kind", kind),
		attribute.String("order.status", status),
	))
}

// RecordRejected increments the rejected counter with the rejection reason code.
func (m *TransitionMetrics) RecordRejected(ctx context.Context, kind string, reason string) {
	if m == nil || !m.enabled {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.kind", kind),
		attribute.String("reason", reason),
	))
}
