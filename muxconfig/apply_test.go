package muxconfig

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/routetree/mux"
)

func isInvalid(err error) bool {
	return errors.Is(err, ErrInvalidManifest)
}

// testCatalog returns a catalog whose handlers echo their name and whose
// middleware append their name to the X-Trace response header.
func testCatalog() *Catalog {
	c := NewCatalog()
	for _, name := range []string{"health", "user", "index", "fallback"} {
		c.HandleFunc(name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(name + ":" + mux.RouteParams(r).ByName("id")))
		})
	}
	for _, name := range []string{"requestid", "logging", "auth"} {
		c.Middleware(name, func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Add("X-Trace", name)
				next.ServeHTTP(w, r)
			})
		})
	}
	return c
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestApply(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	r := mux.NewRouter()
	require.NoError(t, Apply(r, m, testCatalog()))

	t.Run("domain route", func(t *testing.T) {
		w := serve(r, http.MethodGet, "http://api.example.com/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "health:", w.Body.String())
		assert.Equal(t, []string{"requestid", "logging"}, w.Header().Values("X-Trace"))
	})

	t.Run("group route in priority order", func(t *testing.T) {
		w := serve(r, http.MethodPut, "http://api.example.com/v1/users/7")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user:7", w.Body.String())
		assert.Equal(t, []string{"requestid", "auth", "logging"}, w.Header().Values("X-Trace"))
	})

	t.Run("macro constraint", func(t *testing.T) {
		w := serve(r, http.MethodGet, "http://api.example.com/v1/users/abc")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := serve(r, http.MethodDelete, "http://api.example.com/v1/users/7")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "GET, PUT", w.Header().Get("Allow"))
	})

	t.Run("default domain", func(t *testing.T) {
		w := serve(r, http.MethodGet, "http://other.example.com/")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "index:", w.Body.String())
	})
}

func TestApplyReplacesDomainTree(t *testing.T) {
	r := mux.NewRouter()
	catalog := testCatalog()

	first, err := Parse([]byte("domains: [{host: a.com, routes: [{pattern: /old, methods: [GET], handler: index}]}]"))
	require.NoError(t, err)
	require.NoError(t, Apply(r, first, catalog))

	d, ok := r.Registry().Lookup("a.com")
	require.True(t, ok)

	second, err := Parse([]byte("domains: [{host: A.COM, routes: [{pattern: /new, methods: [GET], handler: index}]}]"))
	require.NoError(t, err)
	require.NoError(t, Apply(r, second, catalog))

	same, ok := r.Registry().Lookup("a.com")
	require.True(t, ok)
	assert.Same(t, d, same)
	assert.Equal(t, 1, d.Tree().Len())

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "http://a.com/old").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "http://a.com/new").Code)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	base := "domains: [{host: a.com, routes: [{pattern: /keep, methods: [GET], handler: index}]}]"

	tests := []struct {
		name     string
		manifest string
		check    func(t *testing.T, err error)
	}{
		{
			name: "unknown handler",
			manifest: `
domains:
  - host: a.com
    routes: [{pattern: /new, methods: [GET], handler: index}]
  - host: b.com
    routes: [{pattern: /, methods: [GET], handler: missing}]
`,
			check: func(t *testing.T, err error) {
				assert.True(t, isInvalid(err))
				assert.Contains(t, err.Error(), `unknown handler "missing"`)
			},
		},
		{
			name: "unknown middleware",
			manifest: `
domains:
  - host: a.com
    middlewares: [nope]
    routes: [{pattern: /new, methods: [GET], handler: index}]
`,
			check: func(t *testing.T, err error) {
				assert.True(t, isInvalid(err))
				assert.Contains(t, err.Error(), `unknown middleware "nope"`)
			},
		},
		{
			name: "conflicting routes",
			manifest: `
domains:
  - host: a.com
    routes:
      - {pattern: /users/:id, methods: [GET], handler: user}
      - {pattern: /users/:name, methods: [GET], handler: user}
`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mux.ErrConflictingRoute)
				assert.Contains(t, err.Error(), `domain "a.com"`)
			},
		},
		{
			name: "duplicate method",
			manifest: `
domains:
  - host: a.com
    routes: [{pattern: /x, methods: [GET, get], handler: user}]
`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mux.ErrDuplicateRoute)
			},
		},
		{
			name: "existing host spelled twice",
			manifest: `
domains:
  - host: a.com
    routes: [{pattern: /x, methods: [GET], handler: index}]
  - host: A.com
    routes: [{pattern: /y, methods: [GET], handler: index}]
`,
			check: func(t *testing.T, err error) {
				assert.True(t, isInvalid(err))
				assert.Contains(t, err.Error(), `hosts "a.com" and "A.com" name the same domain`)
			},
		},
		{
			name: "new host spelled twice",
			manifest: `
domains:
  - host: new.com
    routes: [{pattern: /x, methods: [GET], handler: index}]
  - host: NEW.com.
    routes: [{pattern: /y, methods: [GET], handler: index}]
`,
			check: func(t *testing.T, err error) {
				assert.True(t, isInvalid(err))
				assert.Contains(t, err.Error(), `hosts "new.com" and "NEW.com." name the same domain`)
			},
		},
		{
			name: "malformed host",
			manifest: `
domains:
  - host: new.com
    routes: [{pattern: /, methods: [GET], handler: index}]
  - host: "bad host"
    routes: [{pattern: /, methods: [GET], handler: index}]
`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mux.ErrMalformedPattern)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.NewRouter()
			catalog := testCatalog()

			m, err := Parse([]byte(base))
			require.NoError(t, err)
			require.NoError(t, Apply(r, m, catalog))

			bad, err := Parse([]byte(tt.manifest))
			require.NoError(t, err)

			err = Apply(r, bad, catalog)
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "http://a.com/keep").Code)

			hosts := make([]string, 0)
			for _, d := range r.Registry().Domains() {
				hosts = append(hosts, d.Pattern())
			}
			assert.Equal(t, []string{"a.com"}, hosts)
		})
	}
}

func TestBuild(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)

	trees, err := Build(m, testCatalog())
	require.NoError(t, err)
	require.Len(t, trees, 2)

	var templates []string
	require.NoError(t, trees[0].Walk(func(route *mux.Route) error {
		templates = append(templates, route.Method()+" "+route.Template())
		return nil
	}))
	assert.ElementsMatch(t, []string{
		"GET /health",
		"GET /v1/users/:id(int)",
		"PUT /v1/users/:id(int)",
	}, templates)
}

func TestJoinPrefix(t *testing.T) {
	tests := []struct {
		prefix, pattern, want string
	}{
		{"", "/a", "/a"},
		{"/v1", "/", "/v1"},
		{"/v1", "", "/v1"},
		{"/v1/", "users", "/v1/users"},
		{"/v1", "/users", "/v1/users"},
	}

	for _, tt := range tests {
		t.Run(strings.Join([]string{tt.prefix, tt.pattern}, "+"), func(t *testing.T) {
			assert.Equal(t, tt.want, joinPrefix(tt.prefix, tt.pattern))
		})
	}
}
