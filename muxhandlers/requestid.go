package muxhandlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/vitalvas/routetree/mux"
)

// DefaultRequestIDHeader is the header used when RequestIDConfig.HeaderName
// is empty.
const DefaultRequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored in the context by
// RequestIDMiddleware. Returns an empty string if no ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures the Request ID middleware behaviour.
type RequestIDConfig struct {
	// HeaderName overrides the header used to propagate the request ID.
	// Defaults to DefaultRequestIDHeader.
	HeaderName string

	// GenerateFunc returns a new unique ID for the request. Defaults to
	// GenerateUUIDv4.
	GenerateFunc func(r *http.Request) string

	// TrustIncoming reuses the request ID sent by the client instead of
	// generating a new one.
	TrustIncoming bool

	// ValidateIncoming, together with TrustIncoming, accepts an incoming
	// ID only when it is a well-formed UUID. Other values are replaced
	// with a generated ID, which keeps arbitrary client input out of logs.
	ValidateIncoming bool
}

// RequestIDMiddleware returns a middleware that generates or propagates a
// request ID. The ID is set on the request header, the response header and
// the request context, where LoggingMiddleware, RecoveryMiddleware and
// TracingMiddleware pick it up.
func RequestIDMiddleware(cfg RequestIDConfig) mux.MiddlewareFunc {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultRequestIDHeader
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv4
	}

	accept := func(id string) bool {
		if id == "" || !cfg.TrustIncoming {
			return false
		}
		if cfg.ValidateIncoming {
			_, err := uuid.Parse(id)
			return err == nil
		}
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerName)
			if !accept(id) {
				id = generate(r)
			}

			if id != "" {
				r.Header.Set(headerName, id)
				w.Header().Set(headerName, id)
				r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GenerateUUIDv4 returns a new UUID v4 string.
//
// RFC 9562 Section 5.4.
func GenerateUUIDv4(_ *http.Request) string {
	return uuid.New().String()
}

// GenerateUUIDv7 returns a new UUID v7 string. UUIDs are time-ordered:
// IDs generated later sort lexicographically after earlier ones.
//
// RFC 9562 Section 5.7.
func GenerateUUIDv7(_ *http.Request) string {
	return uuid.Must(uuid.NewV7()).String()
}
