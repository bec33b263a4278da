package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/routetree/mux"
	"go.uber.org/zap"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// Logger receives one error entry per recovered panic, with the route
	// template and a stack trace. Defaults to a no-op logger.
	Logger *zap.Logger

	// LogFunc is an optional callback invoked with the request and the
	// recovered value after the panic has been logged.
	LogFunc func(r *http.Request, err any)
}

// RecoveryMiddleware returns a middleware that recovers from panics in
// downstream handlers. When a panic occurs it returns 500 Internal Server
// Error to the client. http.ErrAbortHandler is re-raised so the server can
// abort the connection as documented by net/http.
func RecoveryMiddleware(cfg RecoveryConfig) mux.MiddlewareFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(err)
				}

				logger.Error("panic recovered",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("route", routeTemplate(r)),
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.Any("panic", err),
					zap.Stack("stack"),
				)

				if cfg.LogFunc != nil {
					cfg.LogFunc(r, err)
				}

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
