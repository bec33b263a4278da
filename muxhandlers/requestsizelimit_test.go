package muxhandlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/routetree/mux"
)

// readAll replies 413 when reading the body hits the limit and echoes the
// body otherwise.
func readAll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = w.Write(body)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	t.Run("config validation", func(t *testing.T) {
		tests := []struct {
			name   string
			config RequestSizeLimitConfig
		}{
			{"zero", RequestSizeLimitConfig{}},
			{"negative", RequestSizeLimitConfig{MaxBytes: -1}},
			{"invalid route override", RequestSizeLimitConfig{MaxBytes: 10, Routes: map[string]int64{"/upload": 0}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mw, err := RequestSizeLimitMiddleware(tt.config)
				assert.ErrorIs(t, err, ErrInvalidMaxSize)
				assert.Nil(t, mw)
			})
		}
	})

	t.Run("body within limit", func(t *testing.T) {
		mw, err := RequestSizeLimitMiddleware(RequestSizeLimitConfig{MaxBytes: 10})
		require.NoError(t, err)
		r := routedHandler(t, http.MethodPost, "/echo", readAll, mw)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
	})

	t.Run("declared length over limit is rejected up front", func(t *testing.T) {
		called := false
		mw, err := RequestSizeLimitMiddleware(RequestSizeLimitConfig{MaxBytes: 4})
		require.NoError(t, err)
		r := routedHandler(t, http.MethodPost, "/echo", func(http.ResponseWriter, *http.Request) {
			called = true
		}, mw)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.False(t, called)
	})

	t.Run("unknown length is limited while reading", func(t *testing.T) {
		mw, err := RequestSizeLimitMiddleware(RequestSizeLimitConfig{MaxBytes: 4})
		require.NoError(t, err)
		r := routedHandler(t, http.MethodPost, "/echo", readAll, mw)

		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello world"))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("route override", func(t *testing.T) {
		mw, err := RequestSizeLimitMiddleware(RequestSizeLimitConfig{
			MaxBytes: 4,
			Routes:   map[string]int64{"/upload/:name": 1024},
		})
		require.NoError(t, err)

		r := mux.NewRouter()
		require.NoError(t, r.Use(mux.WithPriority(mw, 0)))
		require.NoError(t, r.HandleFunc(http.MethodPost, "/upload/:name", readAll))
		require.NoError(t, r.HandleFunc(http.MethodPost, "/echo", readAll))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload/a.txt", strings.NewReader("hello world")))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello world")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("request without body", func(t *testing.T) {
		mw, err := RequestSizeLimitMiddleware(RequestSizeLimitConfig{MaxBytes: 4})
		require.NoError(t, err)
		r := routedHandler(t, http.MethodGet, "/echo", func(w http.ResponseWriter, req *http.Request) {
			assert.Nil(t, req.Body)
			w.WriteHeader(http.StatusOK)
		}, mw)

		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Body = nil
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
