// Package muxhandlers provides HTTP middleware and handlers for the mux
// router.
//
// Every middleware factory returns a mux.MiddlewareFunc. Attach it with a
// priority to order it relative to other middleware:
//
//	r := mux.NewRouter(mux.WithLogger(logger))
//	r.Use(
//	    mux.WithPriority(muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{Logger: logger}), -100),
//	    mux.WithPriority(muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{}), -90),
//	    mux.WithPriority(muxhandlers.LoggingMiddleware(muxhandlers.LoggingConfig{Logger: logger}), -80),
//	)
//
// Middleware runs inside the chain of the matched route, so the route
// template is available through mux.CurrentRoute. The observability
// middleware uses it as log field, metric label and span name.
//
// # Recovery Middleware
//
// RecoveryMiddleware turns panics into 500 Internal Server Error responses
// and logs them through zap with a stack trace.
//
// # Request ID Middleware
//
// RequestIDMiddleware generates a UUID (v4 by default, v7 with
// GenerateUUIDv7) or propagates a trusted incoming ID. The ID is stored in
// the request context and read back with RequestIDFromContext.
//
// # Logging Middleware
//
// LoggingMiddleware writes one structured zap entry per request with the
// method, path, route template, status, response size, duration and
// request ID.
//
// # Metrics Middleware
//
// NewMetrics registers Prometheus request counters, a duration histogram,
// a response size counter and an in-flight gauge, labelled by route
// template, bound method and status class:
//
//	m, err := muxhandlers.NewMetrics(muxhandlers.MetricsConfig{Registerer: reg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Use(mux.WithPriority(m.Middleware(), -70))
//
// # Tracing Middleware
//
// TracingMiddleware starts an OpenTelemetry server span named after the
// method and route template, continuing the trace carried by the incoming
// request headers.
//
// # Timeout and Request Size Limit Middleware
//
// TimeoutMiddleware and RequestSizeLimitMiddleware apply a default limit
// and accept per-route overrides keyed by route template.
//
// # Static Files Handler
//
// StaticFilesHandler serves an fs.FS from a wildcard route, taking the file
// path from the wildcard parameter.
package muxhandlers
