package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vitalvas/routetree/mux"
)

// ErrInvalidTimeout is returned when a configured duration is not greater
// than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// TimeoutConfig configures the Timeout middleware behaviour.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the handler to complete.
	// Must be greater than zero.
	Duration time.Duration

	// Routes overrides Duration for individual route templates, e.g.
	// "/reports/:id/export". Every value must be greater than zero.
	Routes map[string]time.Duration

	// Message is the response body returned when the handler times out.
	// When empty, the standard library default is used.
	Message string
}

// TimeoutMiddleware returns a middleware that limits handler execution time.
// It wraps the handler with http.TimeoutHandler, which returns 503 Service
// Unavailable when the handler does not complete in time. The limit is
// chosen by the template of the matched route.
//
// It returns ErrInvalidTimeout if any duration is not greater than zero.
func TimeoutMiddleware(cfg TimeoutConfig) (mux.MiddlewareFunc, error) {
	if cfg.Duration <= 0 {
		return nil, ErrInvalidTimeout
	}

	routes := make(map[string]time.Duration, len(cfg.Routes))
	for template, d := range cfg.Routes {
		if d <= 0 {
			return nil, fmt.Errorf("%w: route %s", ErrInvalidTimeout, template)
		}
		routes[template] = d
	}

	duration := cfg.Duration
	message := cfg.Message

	return func(next http.Handler) http.Handler {
		if len(routes) == 0 {
			return http.TimeoutHandler(next, duration, message)
		}

		fallback := http.TimeoutHandler(next, duration, message)

		// one TimeoutHandler per route template, built on first use
		var handlers sync.Map
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			template := routeTemplate(r)
			d, ok := routes[template]
			if !ok {
				fallback.ServeHTTP(w, r)
				return
			}

			h, ok := handlers.Load(template)
			if !ok {
				h, _ = handlers.LoadOrStore(template, http.TimeoutHandler(next, d, message))
			}
			h.(http.Handler).ServeHTTP(w, r)
		})
	}, nil
}
