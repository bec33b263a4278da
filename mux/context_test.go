package mux

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	ps := Params{
		{Key: "id", Value: "42"},
		{Key: "slug", Value: "hello"},
		{Key: "id", Value: "shadowed"},
	}

	t.Run("get returns first match", func(t *testing.T) {
		v, ok := ps.Get("id")
		assert.True(t, ok)
		assert.Equal(t, "42", v)
	})

	t.Run("get missing", func(t *testing.T) {
		v, ok := ps.Get("missing")
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("by name", func(t *testing.T) {
		assert.Equal(t, "hello", ps.ByName("slug"))
		assert.Empty(t, ps.ByName("missing"))
	})

	t.Run("map", func(t *testing.T) {
		m := Params{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}.Map()
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
	})

	t.Run("nil params", func(t *testing.T) {
		var empty Params
		_, ok := empty.Get("x")
		assert.False(t, ok)
		assert.Empty(t, empty.Map())
	})
}

func TestMatchStatusString(t *testing.T) {
	assert.Equal(t, "not found", MatchNotFound.String())
	assert.Equal(t, "found", MatchFound.String())
	assert.Equal(t, "method not allowed", MatchMethodNotAllowed.String())
}

func TestMatchResultFound(t *testing.T) {
	assert.True(t, MatchResult{Status: MatchFound}.Found())
	assert.False(t, MatchResult{Status: MatchMethodNotAllowed}.Found())
	assert.False(t, MatchResult{}.Found())
}

func TestRequestContext(t *testing.T) {
	t.Run("no route context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Nil(t, RouteParams(req))
		assert.Nil(t, Vars(req))
		assert.Nil(t, CurrentRoute(req))

		_, ok := VarGet(req, "id")
		assert.False(t, ok)
	})

	t.Run("set params for handler tests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
		params := Params{{Key: "id", Value: "7"}}
		req = SetParams(req, params)
		params[0].Value = "changed"

		v, ok := VarGet(req, "id")
		assert.True(t, ok)
		assert.Equal(t, "7", v)
		assert.Equal(t, map[string]string{"id": "7"}, Vars(req))
	})

	t.Run("static route shares its context value", func(t *testing.T) {
		tree := NewTree()
		mustInsert(t, tree, http.MethodGet, "/health")
		route := match(tree, http.MethodGet, "/health").Route
		require.NotNil(t, route.staticCtx)

		a := setRouteContext(httptest.NewRequest(http.MethodGet, "/health", nil), route, nil)
		b := setRouteContext(httptest.NewRequest(http.MethodGet, "/health", nil), route, nil)

		assert.Same(t, route, CurrentRoute(a))
		assert.Same(t,
			a.Context().Value(routeContextKey{}),
			b.Context().Value(routeContextKey{}))
	})

	t.Run("param route has no shared context", func(t *testing.T) {
		tree := NewTree()
		mustInsert(t, tree, http.MethodGet, "/users/:id")
		route := match(tree, http.MethodGet, "/users/1").Route
		assert.Nil(t, route.staticCtx)
	})

	t.Run("recomposed route points at itself", func(t *testing.T) {
		tree := NewTree()
		mustInsert(t, tree, http.MethodGet, "/health")
		require.NoError(t, tree.Use("/", Middlewares(func(h http.Handler) http.Handler { return h })...))

		route := match(tree, http.MethodGet, "/health").Route
		require.NotNil(t, route.staticCtx)
		assert.Same(t, route, route.staticCtx.route)
	})
}

func BenchmarkRouteParams(b *testing.B) {
	req := SetParams(httptest.NewRequest(http.MethodGet, "/users/1", nil), Params{{Key: "id", Value: "1"}})

	for b.Loop() {
		_ = RouteParams(req).ByName("id")
	}
}
