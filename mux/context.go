package mux

import (
	"context"
	"net/http"
	"slices"
)

// MatchStatus is the outcome of a route lookup. Misses are ordinary
// results, not errors.
type MatchStatus uint8

const (
	// MatchNotFound means no route pattern matches the path (404).
	MatchNotFound MatchStatus = iota
	// MatchFound means a route matched both path and method.
	MatchFound
	// MatchMethodNotAllowed means the path matched but no route is bound
	// for the method (405). MatchResult.Allowed lists the bound methods.
	MatchMethodNotAllowed
)

func (s MatchStatus) String() string {
	switch s {
	case MatchFound:
		return "found"
	case MatchMethodNotAllowed:
		return "method not allowed"
	default:
		return "not found"
	}
}

// Param is a single captured path parameter.
type Param struct {
	Key   string
	Value string
}

// Params holds captured parameters in left-to-right pattern order.
type Params []Param

// Get returns the value of the first parameter named name.
func (ps Params) Get(name string) (string, bool) {
	for _, p := range ps {
		if p.Key == name {
			return p.Value, true
		}
	}
	return "", false
}

// ByName returns the value of the parameter named name, or "".
func (ps Params) ByName(name string) string {
	v, _ := ps.Get(name)
	return v
}

// Map returns the parameters as a map.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}
	return m
}

// MatchResult stores the outcome of Tree.Match and Router.Dispatch.
type MatchResult struct {
	Status MatchStatus

	// Domain is the domain the host resolved to; nil when no domain
	// matched.
	Domain *Domain

	// Route is the matched binding when Status is MatchFound.
	Route *Route

	// Params are the captured path parameters when Status is MatchFound.
	Params Params

	// Allowed is the sorted set of methods bound on the matched path when
	// Status is MatchMethodNotAllowed.
	Allowed []string
}

// Found reports whether a route matched.
func (m MatchResult) Found() bool {
	return m.Status == MatchFound
}

func (m *MatchResult) reset() {
	m.Status = MatchNotFound
	m.Route = nil
	m.Params = m.Params[:0]
	m.Allowed = m.Allowed[:0]
}

func (m *MatchResult) addAllowed(method string) {
	if !slices.Contains(m.Allowed, method) {
		m.Allowed = append(m.Allowed, method)
	}
}

// routeContextKey is an unexported type for the single context key.
type routeContextKey struct{}

// routeContext holds the matched route and extracted parameters.
type routeContext struct {
	route  *Route
	params Params
}

// RouteParams returns the path parameters of the current request, if any.
func RouteParams(r *http.Request) Params {
	if rc, ok := r.Context().Value(routeContextKey{}).(*routeContext); ok {
		return rc.params
	}
	return nil
}

// Vars returns the path parameters of the current request as a map.
func Vars(r *http.Request) map[string]string {
	if ps := RouteParams(r); ps != nil {
		return ps.Map()
	}
	return nil
}

// VarGet returns the value of a single path parameter by name and a
// boolean indicating whether it exists.
func VarGet(r *http.Request, name string) (string, bool) {
	return RouteParams(r).Get(name)
}

// CurrentRoute returns the matched route for the current request, if any.
// This only works when called inside the chain of the matched route
// because the route is stored in the request context.
func CurrentRoute(r *http.Request) *Route {
	if rc, ok := r.Context().Value(routeContextKey{}).(*routeContext); ok {
		return rc.route
	}
	return nil
}

// SetParams sets the path parameters for the given request, returning the
// modified request. This is intended for testing handlers.
func SetParams(r *http.Request, params Params) *http.Request {
	return setRouteContext(r, CurrentRoute(r), slices.Clone(params))
}

// setRouteContext stores the matched route and params in the request
// context. Routes without parameters reuse a context value built at
// registration, which saves an allocation per request.
func setRouteContext(r *http.Request, route *Route, params Params) *http.Request {
	var rc *routeContext
	if route != nil && len(params) == 0 && route.staticCtx != nil {
		rc = route.staticCtx
	} else {
		rc = &routeContext{route: route, params: params}
	}
	return r.WithContext(context.WithValue(r.Context(), routeContextKey{}, rc))
}
