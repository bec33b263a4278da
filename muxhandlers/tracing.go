package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/routetree/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is the instrumentation name used when
// TracingConfig.TracerName is empty.
const DefaultTracerName = "github.com/vitalvas/routetree/muxhandlers"

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerProvider creates the tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Propagators extract the parent span context from request headers.
	// Defaults to the global propagator.
	Propagators propagation.TextMapPropagator

	// TracerName is the instrumentation scope name. Defaults to
	// DefaultTracerName.
	TracerName string
}

// TracingMiddleware returns a middleware that starts a server span per
// request. The span is named "<METHOD> <route template>" and carries the
// route, the bound method and the response status. Responses with status
// 5xx mark the span as failed.
func TracingMiddleware(cfg TracingConfig) mux.MiddlewareFunc {
	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	propagators := cfg.Propagators
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}

	name := cfg.TracerName
	if name == "" {
		name = DefaultTracerName
	}

	tracer := provider.Tracer(name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagators.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			route := routeTemplate(r)
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", r.URL.Path),
				attribute.String("server.address", r.Host),
			}
			for _, p := range mux.RouteParams(r) {
				attrs = append(attrs, attribute.String("http.route.param."+p.Key, p.Value))
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				attrs = append(attrs, attribute.String("request.id", id))
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			rw := newResponseRecorder(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int("http.response.status_code", rw.status),
				attribute.Int("http.response.body.size", rw.size),
			)
			if rw.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.status))
			}
		})
	}
}
