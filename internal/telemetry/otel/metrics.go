package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the registry counters.
type Metrics struct {
	registrations metric.Int64Counter
	logins        metric.Int64Counter
	accessCodes   metric.Int64Counter
	importLines   metric.Int64Counter
}

// NewMetrics creates the registry counters on provider. A nil provider yields no-op counters.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(instrumentationName)
	var m Metrics
	var err error
	if m.registrations, err = meter.Int64Counter("registry.registrations",
		metric.WithDescription("Users registered, by source and outcome.")); err != nil {
		return nil, err
	}
	if m.logins, err = meter.Int64Counter("registry.logins",
		metric.WithDescription("Login attempts, by outcome.")); err != nil {
		return nil, err
	}
	if m.accessCodes, err = meter.Int64Counter("registry.access_codes",
		metric.WithDescription("Access codes issued, by delivery outcome.")); err != nil {
		return nil, err
	}
	if m.importLines, err = meter.Int64Counter("registry.import.lines",
		metric.WithDescription("Import lines processed, by outcome.")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) RecordRegistration(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source), attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordAccessCode(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.accessCodes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordImport adds the imported and skipped line counts of one batch.
func (m *Metrics) RecordImport(ctx context.Context, imported, skipped int) {
	if m == nil {
		return
	}
	m.importLines.Add(ctx, int64(imported), metric.WithAttributes(attribute.String("outcome", "imported")))
	m.importLines.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("outcome", "skipped")))
}
