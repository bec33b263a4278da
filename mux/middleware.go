package mux

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
)

// MiddlewareFunc is a function which receives an http.Handler and returns
// another http.Handler. It can be used to wrap handlers with additional
// behavior such as logging, authentication, etc. A middleware
// short-circuits the chain by not calling next.
type MiddlewareFunc func(http.Handler) http.Handler

// Middleware is a MiddlewareFunc with an execution priority. Lower
// priorities run first (outermost); equal priorities keep registration
// order.
type Middleware struct {
	Func     MiddlewareFunc
	Priority int
}

// WithPriority returns mw with the given priority.
func WithPriority(mw MiddlewareFunc, priority int) Middleware {
	return Middleware{Func: mw, Priority: priority}
}

// Middlewares lifts plain MiddlewareFuncs to Middleware with priority 0.
func Middlewares(mws ...MiddlewareFunc) []Middleware {
	out := make([]Middleware, 0, len(mws))
	for _, mw := range mws {
		out = append(out, Middleware{Func: mw})
	}
	return out
}

// Chain sorts mws by priority and wraps h so that the first middleware in
// priority order is the outermost one. The result is built once and can be
// served concurrently.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	return compose(h, sortMiddleware(mws))
}

// sortMiddleware returns a priority-sorted copy of mws. The sort is stable,
// so ties keep the order in which the middleware was registered.
func sortMiddleware(mws []Middleware) []Middleware {
	sorted := slices.Clone(mws)
	slices.SortStableFunc(sorted, func(a, b Middleware) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return sorted
}

// compose wraps h with already sorted middleware, innermost last.
func compose(h http.Handler, sorted []Middleware) http.Handler {
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Func != nil {
			h = sorted[i].Func(h)
		}
	}
	return h
}

// CORSMethodMiddleware sets the Access-Control-Allow-Methods response
// header (Fetch Standard, CORS protocol) to every method registered for
// the request path in the resolved domain.
func CORSMethodMiddleware(r *Router) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if methods := r.AllowedMethods(req.Host, req.URL.Path); len(methods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
			}
			next.ServeHTTP(w, req)
		})
	}
}
