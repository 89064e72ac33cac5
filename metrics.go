package fluent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/pitabwire/fluent"

	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

var (
	tableKey     = attribute.Key("fluent.table")
	localeKey    = attribute.Key("fluent.locale")
	operationKey = attribute.Key("fluent.operation")
	failedKey    = attribute.Key("fluent.failed")
)

var (
	operationLatency = latencyMeasure("/latency")
	upsertCount      = dimensionlessMeasure("/localised_upserts", "Rows upserted into localised tables")
)

func latencyMeasure(meterName string) metric.Float64Histogram {
	m, err := otel.Meter(instrumentationName).Float64Histogram(
		instrumentationName+meterName,
		metric.WithDescription("Latency distribution of localised reads and writes"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// Only invalid instrument names fail here.
		panic(fmt.Sprintf("fullName=%q: %v", instrumentationName+meterName, err))
	}
	return m
}

func dimensionlessMeasure(meterName string, description string) metric.Int64Counter {
	m, err := otel.Meter(instrumentationName).Int64Counter(
		instrumentationName+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("fullName=%q: %v", instrumentationName+meterName, err))
	}
	return m
}

// operation tracks one repository call as a span and a latency sample.
type operation struct {
	span    trace.Span
	attrs   []attribute.KeyValue
	started time.Time
}

func startOperation(ctx context.Context, tracer trace.Tracer, name, table, locale string) (context.Context, *operation) {
	attrs := []attribute.KeyValue{
		operationKey.String(name),
		tableKey.String(table),
		localeKey.String(locale),
	}
	ctx, span := tracer.Start(ctx, "fluent."+name, trace.WithAttributes(attrs...))
	return ctx, &operation{span: span, attrs: attrs, started: time.Now()}
}

func (o *operation) end(ctx context.Context, err error) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.End()

	elapsed := float64(time.Since(o.started)) / float64(time.Millisecond)
	attrs := append(o.attrs, failedKey.Bool(err != nil))
	operationLatency.Record(ctx, elapsed, metric.WithAttributes(attrs...))
}
