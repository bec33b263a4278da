package muxhandlers

import (
	"net/http"
	"time"

	"github.com/vitalvas/routetree/mux"
	"go.uber.org/zap"
)

// LoggingConfig configures the access log middleware.
type LoggingConfig struct {
	// Logger receives one entry per request. Defaults to a no-op logger.
	Logger *zap.Logger

	// SkipRoutes lists route templates that are not logged, e.g.
	// "/healthz".
	SkipRoutes []string
}

// LoggingMiddleware returns a middleware that writes a structured access
// log entry per request once the handler returns. Responses with status
// 5xx are logged at error level, 4xx at warn level, everything else at
// info level.
func LoggingMiddleware(cfg LoggingConfig) mux.MiddlewareFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	skip := make(map[string]struct{}, len(cfg.SkipRoutes))
	for _, template := range cfg.SkipRoutes {
		skip[template] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)
			if _, ok := skip[route]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseRecorder(w)

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("host", r.Host),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", rw.status),
				zap.Int("size", rw.size),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			switch {
			case rw.status >= 500:
				logger.Error("request completed", fields...)
			case rw.status >= 400:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
