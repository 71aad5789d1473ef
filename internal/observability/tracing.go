package observability

import (
	"context"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies Hotelly's spans among others sharing a collector.
const tracerName = "github.com/hotelly/hotelly"

// NewTracerProvider builds an SDK tracer provider for the given service
// (ingress or worker). Without an OTLP endpoint configured it still
// records spans in-process, which is enough for the propagation and
// attribute behavior this package is responsible for; a collector
// exporter can be registered on the returned provider by the caller.
func NewTracerProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

// TracingMiddleware starts a span per request, propagating W3C trace
// context from the incoming Traceparent header (spec §6: correlation
// flows end-to-end across ingress, the task queue, and the worker).
func TracingMiddleware(tp trace.TracerProvider) func(http.Handler) http.Handler {
	tracer := tp.Tracer(tracerName)
	propagator := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			spanName := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
			ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				semconv.HTTPMethod(r.Method),
				semconv.HTTPTarget(r.URL.Path),
				attribute.String("http.host", r.Host),
			)
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				span.SetAttributes(attribute.String("hotelly.request_id", reqID))
			}

			carrier := propagation.HeaderCarrier(w.Header())
			propagator.Inject(ctx, carrier)

			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPStatusCode(rw.Status()))
			if rw.Status() >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", rw.Status()))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// StartSpan starts a child span for internal work outside the HTTP
// middleware chain — task handlers invoked directly, outbox delivery
// loops, the retention job.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
