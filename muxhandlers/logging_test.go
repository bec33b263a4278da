package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/routetree/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{"success logs info", http.StatusOK, zapcore.InfoLevel},
		{"client error logs warn", http.StatusNotFound, zapcore.WarnLevel},
		{"server error logs error", http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			r := routedHandler(t, http.MethodGet, "/users/:id", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}, LoggingMiddleware(LoggingConfig{Logger: zap.New(core)}))

			req := httptest.NewRequest(http.MethodGet, "http://api.example.com/users/42", nil)
			r.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("request completed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, http.MethodGet, fields["method"])
			assert.Equal(t, "api.example.com", fields["host"])
			assert.Equal(t, "/users/42", fields["path"])
			assert.Equal(t, "/users/:id", fields["route"])
			assert.EqualValues(t, tt.status, fields["status"])
			assert.EqualValues(t, 4, fields["size"])
			assert.Contains(t, fields, "duration")
			assert.NotContains(t, fields, "request_id")
		})
	}

	t.Run("includes request id", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		r := mux.NewRouter()
		require.NoError(t, r.Use(
			mux.WithPriority(RequestIDMiddleware(RequestIDConfig{GenerateFunc: func(*http.Request) string { return "abc" }}), 1),
			mux.WithPriority(LoggingMiddleware(LoggingConfig{Logger: zap.New(core)}), 2),
		))
		require.NoError(t, r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) {}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "abc", logs.All()[0].ContextMap()["request_id"])
	})

	t.Run("skips configured routes", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		mw := LoggingMiddleware(LoggingConfig{Logger: zap.New(core), SkipRoutes: []string{"/healthz"}})

		r := mux.NewRouter()
		require.NoError(t, r.Use(mux.WithPriority(mw, 0)))
		require.NoError(t, r.HandleFunc(http.MethodGet, "/healthz", func(http.ResponseWriter, *http.Request) {}))
		require.NoError(t, r.HandleFunc(http.MethodGet, "/ready", func(http.ResponseWriter, *http.Request) {}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Zero(t, logs.Len())

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("nil logger is a no-op", func(t *testing.T) {
		r := routedHandler(t, http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}, LoggingMiddleware(LoggingConfig{}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	r := routedHandler(b, http.MethodGet, "/users/:id", func(http.ResponseWriter, *http.Request) {},
		LoggingMiddleware(LoggingConfig{Logger: zap.NewNop()}))
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)

	for b.Loop() {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}
