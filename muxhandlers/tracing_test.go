package muxhandlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/routetree/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracingTest creates a tracer provider backed by a span recorder.
func setupTracingTest(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return tp, recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware(t *testing.T) {
	t.Run("names span after route template", func(t *testing.T) {
		tp, recorder := setupTracingTest(t)

		r := routedHandler(t, http.MethodGet, "/users/:id", func(w http.ResponseWriter, req *http.Request) {
			assert.True(t, trace.SpanFromContext(req.Context()).SpanContext().IsValid())
			w.WriteHeader(http.StatusCreated)
		}, TracingMiddleware(TracingConfig{TracerProvider: tp}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://api.example.com/users/42", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		span := spans[0]
		assert.Equal(t, "GET /users/:id", span.Name())
		assert.Equal(t, trace.SpanKindServer, span.SpanKind())
		assert.Equal(t, DefaultTracerName, span.InstrumentationScope().Name)

		attrs := span.Attributes()
		for key, want := range map[string]string{
			"http.request.method": http.MethodGet,
			"http.route":          "/users/:id",
			"url.path":            "/users/42",
			"server.address":      "api.example.com",
			"http.route.param.id": "42",
		} {
			v, ok := attrValue(attrs, key)
			require.True(t, ok, key)
			assert.Equal(t, want, v.AsString(), key)
		}

		status, ok := attrValue(attrs, "http.response.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(http.StatusCreated), status.AsInt64())
		assert.Equal(t, codes.Unset, span.Status().Code)
	})

	t.Run("marks server errors", func(t *testing.T) {
		tp, recorder := setupTracingTest(t)

		r := routedHandler(t, http.MethodGet, "/fail", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, TracingMiddleware(TracingConfig{TracerProvider: tp}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("continues incoming trace", func(t *testing.T) {
		tp, recorder := setupTracingTest(t)
		propagator := propagation.TraceContext{}

		r := routedHandler(t, http.MethodGet, "/x", func(http.ResponseWriter, *http.Request) {},
			TracingMiddleware(TracingConfig{TracerProvider: tp, Propagators: propagator}))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		r.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
		assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	})

	t.Run("records request id", func(t *testing.T) {
		tp, recorder := setupTracingTest(t)

		r := mux.NewRouter()
		require.NoError(t, r.Use(
			mux.WithPriority(RequestIDMiddleware(RequestIDConfig{GenerateFunc: func(*http.Request) string { return "rid" }}), 1),
			mux.WithPriority(TracingMiddleware(TracingConfig{TracerProvider: tp}), 2),
		))
		require.NoError(t, r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) {}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		v, ok := attrValue(spans[0].Attributes(), "request.id")
		require.True(t, ok)
		assert.Equal(t, "rid", v.AsString())
	})

	t.Run("outside a route", func(t *testing.T) {
		tp, recorder := setupTracingTest(t)

		h := TracingMiddleware(TracingConfig{TracerProvider: tp, TracerName: "custom"})(http.NotFoundHandler())
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET "+unmatchedRoute, spans[0].Name())
		assert.Equal(t, "custom", spans[0].InstrumentationScope().Name)
	})
}

func BenchmarkTracingMiddleware(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	b.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := routedHandler(b, http.MethodGet, "/users/:id", func(http.ResponseWriter, *http.Request) {},
		TracingMiddleware(TracingConfig{TracerProvider: tp}))
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)

	for b.Loop() {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}
