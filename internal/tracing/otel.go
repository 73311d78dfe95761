package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// Config describes the process for the tracer provider
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ProjectsRoot is recorded on every span so traces from several
	// vibely installs on one host stay apart
	ProjectsRoot string

	// SampleRatio is the fraction of root operations traced, 0..1. Child
	// spans follow their parent.
	SampleRatio float64
}

// InitOpenTelemetry initializes the process-wide tracer provider. Only the
// first call takes effect.
func InitOpenTelemetry(cfg Config) error {
	providerOnce.Do(func() {
		if cfg.ServiceName == "" {
			cfg.ServiceName = "vibely"
		}

		attrs := []attribute.KeyValue{
			attribute.String("service.name", cfg.ServiceName),
		}
		if cfg.ServiceVersion != "" {
			attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
		}
		if cfg.ProjectsRoot != "" {
			attrs = append(attrs, attribute.String("vibely.projects_root", cfg.ProjectsRoot))
		}

		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return providerErr
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// ShutdownOpenTelemetry flushes and shuts down the global tracer provider.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span and ensures trace_id is propagated in the tracing context package.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
