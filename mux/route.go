package mux

import (
	"net/http"
	"slices"
)

// Route is a method binding on a tree node: the terminal handler and the
// chain composed from it at registration. A Route is immutable once
// registered and is shared between tree snapshots.
type Route struct {
	method      string
	template    string
	handler     http.Handler
	middlewares []Middleware
	chain       http.Handler
	params      int

	// staticCtx is the request context value shared by every request to a
	// route without parameters.
	staticCtx *routeContext
}

// seal finishes a route after its chain has been composed.
func (r *Route) seal() *Route {
	r.staticCtx = nil
	if r.params == 0 {
		r.staticCtx = &routeContext{route: r}
	}
	return r
}

// Method returns the upper-cased HTTP method the route is bound to.
func (r *Route) Method() string {
	return r.method
}

// Template returns the canonical pattern the route was registered with,
// e.g. "/users/:id([0-9]+)".
func (r *Route) Template() string {
	return r.template
}

// Handler returns the terminal handler without middleware.
func (r *Route) Handler() http.Handler {
	return r.handler
}

// Chain returns the handler wrapped in all middleware that applies to the
// route, in priority order.
func (r *Route) Chain() http.Handler {
	return r.chain
}

// Middlewares returns a copy of the route-level middleware, without the
// middleware inherited from groups.
func (r *Route) Middlewares() []Middleware {
	return slices.Clone(r.middlewares)
}

// ParamCount returns the number of parameters the route captures.
func (r *Route) ParamCount() int {
	return r.params
}

// ServeHTTP runs the composed chain.
func (r *Route) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.chain.ServeHTTP(w, req)
}
