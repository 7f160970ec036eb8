package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of every span the core starts
const TracerName = "familytree"

// Tracer returns the tracer from the global provider. It is a no-op unless
// the host installed a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span with attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool
	SampleRate float64
	Endpoint   string // OTLP gRPC collector; empty reports spans to the logger
	Insecure   bool
}

// InitTracing installs an SDK tracer provider. Spans go to the OTLP collector
// at config.Endpoint when one is set and to the logger otherwise. The returned
// function flushes and shuts the provider down.
func InitTracing(ctx context.Context, config TracingConfig, logger *zap.Logger) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sampler := sdktrace.AlwaysSample()
	if config.SampleRate > 0 && config.SampleRate < 1 {
		sampler = sdktrace.TraceIDRatioBased(config.SampleRate)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.ParentBased(sampler))}
	if config.Endpoint != "" {
		exporter, err := newOTLPExporter(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("Exporting traces", zap.String("endpoint", config.Endpoint))
	} else {
		opts = append(opts, sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger}))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// newOTLPExporter creates the gRPC exporter. The connection is made lazily,
// so a collector that is down does not fail startup.
func newOTLPExporter(ctx context.Context, config TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// logSpanProcessor writes each finished span as one debug log line
type logSpanProcessor struct {
	logger *zap.Logger
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("span", s.Name()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
		zap.String("trace_id", s.SpanContext().TraceID().String()),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	if s.Status().Code == codes.Error {
		fields = append(fields, zap.String("error", s.Status().Description))
	}
	p.logger.Debug("span finished", fields...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
