package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName identifies springkit instruments on the host's meter provider.
const meterName = "github.com/skillsenselab/springkit"

// Operation outcome values recorded on the outcome attribute.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeNetwork  = "network_error"
	OutcomeProtocol = "protocol_error"
)

// Metrics holds instruments for registry client operations.
type Metrics struct {
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// NewMetrics creates instruments on the given meter. A nil meter uses the
// global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = Meter(meterName)
	}

	operationTotal, err := meter.Int64Counter("registry.operation.total",
		metric.WithDescription("Registry operations by operation name and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("registry.operation.duration",
		metric.WithDescription("Duration of registry operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registry.operation.duration histogram: %w", err)
	}

	return &Metrics{
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
	}, nil
}

// RecordOperation records one registry operation outcome.
// A nil receiver silently skips recording.
func (m *Metrics) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.operationTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
