package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/routetree/mux"
)

// ErrInvalidMaxSize is returned when a configured size limit is not greater
// than zero.
var ErrInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// RequestSizeLimitConfig configures the Request Size Limit middleware
// behaviour.
type RequestSizeLimitConfig struct {
	// MaxBytes is the maximum allowed request body size in bytes.
	// Must be greater than zero.
	MaxBytes int64

	// Routes overrides MaxBytes for individual route templates, e.g. an
	// upload endpoint. Every value must be greater than zero.
	Routes map[string]int64
}

// RequestSizeLimitMiddleware returns a middleware that limits the size of
// incoming request bodies. A request whose Content-Length already exceeds
// the limit is answered with 413 Content Too Large (RFC 9110 Section
// 15.5.14) without calling the handler. Otherwise r.Body is wrapped with
// http.MaxBytesReader so that reading beyond the limit fails.
//
// It returns ErrInvalidMaxSize if any limit is not greater than zero.
func RequestSizeLimitMiddleware(cfg RequestSizeLimitConfig) (mux.MiddlewareFunc, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	routes := make(map[string]int64, len(cfg.Routes))
	for template, n := range cfg.Routes {
		if n <= 0 {
			return nil, fmt.Errorf("%w: route %s", ErrInvalidMaxSize, template)
		}
		routes[template] = n
	}

	maxBytes := cfg.MaxBytes

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := maxBytes
			if n, ok := routes[routeTemplate(r)]; ok {
				limit = n
			}

			if r.ContentLength > limit {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
