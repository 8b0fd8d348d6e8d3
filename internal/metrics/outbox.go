package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutboxMetrics records delivery outcomes and queue depth of the outbox.
type OutboxMetrics interface {
	// RecordDeliveries adds count deliveries with the given outcome
	// ("completed", "retrying", "terminal").
	RecordDeliveries(ctx context.Context, outcome string, count int)

	// RecordEntries sets the number of entries currently in one (source table, status) bucket.
	RecordEntries(ctx context.Context, sourceTable, status string, count int64)

	// RecordOldestPendingAge sets the age of the oldest pending entry.
	RecordOldestPendingAge(ctx context.Context, age time.Duration)
}

type outboxMetrics struct {
	deliveryCounter  metric.Int64Counter
	entriesGauge     metric.Int64Gauge
	oldestPendingAge metric.Float64Gauge
}

// NewOutboxMetrics creates an OutboxMetrics implementation using the provided meter provider.
func NewOutboxMetrics(meterProvider metric.MeterProvider, namespace string) (OutboxMetrics, error) {
	meter := meterProvider.Meter(namespace)

	deliveryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_deliveries_total", namespace),
		metric.WithDescription("Total number of outbox delivery attempts by outcome"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery counter: %w", err)
	}

	entriesGauge, err := meter.Int64Gauge(
		fmt.Sprintf("%s_outbox_entries", namespace),
		metric.WithDescription("Number of outbox entries by source table and status"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entries gauge: %w", err)
	}

	oldestPendingAge, err := meter.Float64Gauge(
		fmt.Sprintf("%s_outbox_oldest_pending_age_seconds", namespace),
		metric.WithDescription("Age of the oldest pending outbox entry in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oldest pending age gauge: %w", err)
	}

	return &outboxMetrics{
		deliveryCounter:  deliveryCounter,
		entriesGauge:     entriesGauge,
		oldestPendingAge: oldestPendingAge,
	}, nil
}

func (o *outboxMetrics) RecordDeliveries(ctx context.Context, outcome string, count int) {
	if count <= 0 {
		return
	}
	o.deliveryCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (o *outboxMetrics) RecordEntries(ctx context.Context, sourceTable, status string, count int64) {
	o.entriesGauge.Record(ctx, count,
		metric.WithAttributes(
			attribute.String("source_table", sourceTable),
			attribute.String("status", status),
		),
	)
}

func (o *outboxMetrics) RecordOldestPendingAge(ctx context.Context, age time.Duration) {
	o.oldestPendingAge.Record(ctx, age.Seconds())
}

// NoOpOutboxMetrics is a no-op implementation of OutboxMetrics for when metrics are disabled.
type NoOpOutboxMetrics struct{}

// NewNoOpOutboxMetrics creates a no-op OutboxMetrics implementation.
func NewNoOpOutboxMetrics() OutboxMetrics {
	return &NoOpOutboxMetrics{}
}

func (n *NoOpOutboxMetrics) RecordDeliveries(ctx context.Context, outcome string, count int) {}

func (n *NoOpOutboxMetrics) RecordEntries(ctx context.Context, sourceTable, status string, count int64) {}

func (n *NoOpOutboxMetrics) RecordOldestPendingAge(ctx context.Context, age time.Duration) {}
