package observability

import (
	"context"

	"metronix/internal/config"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// LifecycleMetrics counts complaint activity. A nil *LifecycleMetrics records nothing.
type LifecycleMetrics struct {
	submissions   otelmetric.Int64Counter
	transitions   otelmetric.Int64Counter
	notifications otelmetric.Int64Counter
}

// NewLifecycleMetrics registers the complaint counters on meter.
// A nil meter uses the global meter provider.
func NewLifecycleMetrics(meter otelmetric.Meter) (*LifecycleMetrics, error) {
	if meter == nil {
		meter = otel.Meter("metronix")
	}

	submissions, err := meter.Int64Counter("metronix.complaints.submitted",
		otelmetric.WithDescription("Complaints submitted by citizens"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("metronix.complaints.transitions",
		otelmetric.WithDescription("Lifecycle actions applied to complaints"))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("metronix.notifications",
		otelmetric.WithDescription("Notification delivery attempts"))
	if err != nil {
		return nil, err
	}

	return &LifecycleMetrics{
		submissions:   submissions,
		transitions:   transitions,
		notifications: notifications,
	}, nil
}

// RecordSubmission counts a new complaint
func (m *LifecycleMetrics) RecordSubmission(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("category", category)))
}

// RecordTransition counts a lifecycle action such as assign or resolve
func (m *LifecycleMetrics) RecordTransition(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("action", action)))
}

// RecordNotification counts a notification attempt and its outcome
func (m *LifecycleMetrics) RecordNotification(ctx context.Context, kind string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !delivered {
		outcome = "failed"
	}
	m.notifications.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
