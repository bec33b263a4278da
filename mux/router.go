package mux

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Router dispatches requests to routes registered per domain.
//
// It implements the http.Handler interface, so it can be registered to serve
// requests:
//
//	r := mux.NewRouter()
//	r.HandleFunc(http.MethodGet, "/users/:id", handler)
//	http.ListenAndServe(":8080", r)
type Router struct {
	// NotFoundHandler is called when no route matches.
	// If nil, http.NotFoundHandler() is used.
	// Corresponds to 404 Not Found per RFC 9110 Section 15.5.5.
	NotFoundHandler http.Handler

	// MethodNotAllowedHandler is called when a route matches the path
	// but not the method. If nil, a default 405 handler is used.
	// Per RFC 9110 Section 15.5.6, the Allow header is always set before
	// this handler is invoked.
	MethodNotAllowedHandler http.Handler

	registry    *Registry
	logger      *zap.Logger
	skipClean   bool
	autoOptions bool

	results sync.Pool // *MatchResult
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for registration events. Requests are
// never logged by the router itself.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithRegistry makes the router serve the domains of an existing registry.
func WithRegistry(registry *Registry) Option {
	return func(r *Router) {
		r.registry = registry
	}
}

// WithSkipClean disables removal of dot segments from request paths.
func WithSkipClean(skip bool) Option {
	return func(r *Router) {
		r.skipClean = skip
	}
}

// WithAutoOptions makes the router answer OPTIONS requests for paths
// without an explicit OPTIONS route with 204 No Content and an Allow
// header.
func WithAutoOptions(enabled bool) Option {
	return func(r *Router) {
		r.autoOptions = enabled
	}
}

// NewRouter returns a new router instance.
func NewRouter(opts ...Option) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.registry == nil {
		r.registry = NewRegistry(r.logger)
	}

	r.results.New = func() any {
		return &MatchResult{Params: make(Params, 0, 8)}
	}

	return r
}

// Registry returns the domain registry the router dispatches through.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Host returns the root group of the domain registered for hostPattern,
// registering the domain on first use.
func (r *Router) Host(hostPattern string) (*Group, error) {
	d, ok := r.registry.Lookup(hostPattern)
	if !ok {
		var err error
		if d, err = r.registry.RegisterDomain(hostPattern); err != nil {
			return nil, err
		}
	}
	return &Group{router: r, domain: d}, nil
}

// root returns the root group of the default domain.
func (r *Router) root() *Group {
	return &Group{router: r, domain: r.registry.Default()}
}

// Handle registers handler for method and pattern in the default domain.
func (r *Router) Handle(method, pattern string, handler http.Handler, mws ...Middleware) error {
	return r.root().Handle(method, pattern, handler, mws...)
}

// HandleFunc registers a handler function for method and pattern in the
// default domain.
func (r *Router) HandleFunc(method, pattern string, f func(http.ResponseWriter, *http.Request), mws ...Middleware) error {
	return r.root().HandleFunc(method, pattern, f, mws...)
}

// Use attaches middleware to every route of the default domain.
func (r *Router) Use(mws ...Middleware) error {
	return r.root().Use(mws...)
}

// UseMethod attaches middleware to the routes of the default domain bound
// to method.
func (r *Router) UseMethod(method string, mws ...Middleware) error {
	return r.root().UseMethod(method, mws...)
}

// Mount serves handler for every path below prefix in the default domain.
// See Group.Mount.
func (r *Router) Mount(prefix string, handler http.Handler, mws ...Middleware) error {
	return r.root().Mount(prefix, handler, mws...)
}

// Group returns a group of the default domain rooted at prefix.
func (r *Router) Group(prefix string, mws ...Middleware) (*Group, error) {
	return r.root().Group(prefix, mws...)
}

// Dispatch resolves the domain for host and matches path and method
// against its tree. It does not mutate any router state.
func (r *Router) Dispatch(host, path, method string) MatchResult {
	var res MatchResult
	r.match(host, path, method, &res)
	return res
}

// Match is the allocation-free form of Dispatch: res is reset and reused.
func (r *Router) Match(host, path, method string, res *MatchResult) {
	r.match(host, path, method, res)
}

func (r *Router) match(host, path, method string, res *MatchResult) {
	d, ok := r.registry.ResolveDomain(host)
	if !ok {
		res.reset()
		res.Domain = nil
		return
	}
	d.Match(path, method, res)
}

// AllowedMethods returns every method bound on the routes matching path
// in the domain serving host, sorted.
func (r *Router) AllowedMethods(host, path string) []string {
	var res MatchResult
	// No route is bound to the empty method, so the walk visits every
	// terminal the path reaches.
	r.match(host, path, "", &res)
	return res.Allowed
}

// Walk calls fn for every route of every domain, default domain first.
func (r *Router) Walk(fn func(d *Domain, route *Route) error) error {
	domains := r.registry.Domains()
	if d := r.registry.def.Load(); d != nil {
		domains = append([]*Domain{d}, domains...)
	}

	for _, d := range domains {
		err := d.Tree().Walk(func(route *Route) error {
			return fn(d, route)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ServeHTTP dispatches the chain of the matched route.
// Implements http.Handler per RFC 9110 Section 9.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	// Normalize the request path per RFC 3986 Section 5.2.4
	// (removing dot segments) unless SkipClean is enabled.
	if !r.skipClean {
		if cleaned := cleanPath(path); cleaned != path {
			u := *req.URL
			u.Path = cleaned
			u.RawPath = ""
			req = req.Clone(req.Context())
			req.URL = &u
			path = cleaned
		}
	}

	res := r.results.Get().(*MatchResult)
	r.match(req.Host, path, req.Method, res)

	switch res.Status {
	case MatchFound:
		var params Params
		if len(res.Params) > 0 {
			params = slices.Clone(res.Params)
		}
		route := res.Route
		r.release(res)

		route.ServeHTTP(w, setRouteContext(req, route, params))

	case MatchMethodNotAllowed:
		allowed := res.Allowed
		if r.autoOptions && !slices.Contains(allowed, http.MethodOptions) {
			allowed = append(allowed, http.MethodOptions)
			slices.Sort(allowed)
		}
		// RFC 9110 Section 15.5.6: the origin server MUST generate an
		// Allow header field in a 405 response.
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		res.Allowed = allowed
		r.release(res)

		if r.autoOptions && req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		handler := r.MethodNotAllowedHandler
		if handler == nil {
			handler = defaultMethodNotAllowedHandler
		}
		handler.ServeHTTP(w, req)

	default:
		r.release(res)

		handler := r.NotFoundHandler
		if handler == nil {
			handler = defaultNotFoundHandler
		}
		handler.ServeHTTP(w, req)
	}
}

func (r *Router) release(res *MatchResult) {
	res.Route = nil
	res.Domain = nil
	r.results.Put(res)
}

// Group registers routes under a common prefix of one domain. Middleware
// added to a group is attached to the prefix node and applies to every
// route below it, including routes registered later.
type Group struct {
	router *Router
	domain *Domain
	prefix string
}

// Domain returns the domain the group registers into.
func (g *Group) Domain() *Domain {
	return g.domain
}

// Prefix returns the group's path prefix, "" for a domain root.
func (g *Group) Prefix() string {
	return g.prefix
}

// Handle registers handler for method on the group prefix joined with
// pattern.
func (g *Group) Handle(method, pattern string, handler http.Handler, mws ...Middleware) error {
	full := joinPattern(g.prefix, pattern)
	if err := g.domain.Insert(full, method, mws, handler); err != nil {
		return err
	}

	g.router.logger.Debug("route registered",
		zap.String("domain", g.domain.Pattern()),
		zap.String("method", strings.ToUpper(method)),
		zap.String("pattern", full),
		zap.Int("middlewares", len(mws)),
	)

	return nil
}

// HandleFunc registers a handler function. See Handle.
func (g *Group) HandleFunc(method, pattern string, f func(http.ResponseWriter, *http.Request), mws ...Middleware) error {
	if f == nil {
		return g.Handle(method, pattern, nil, mws...)
	}
	return g.Handle(method, pattern, http.HandlerFunc(f), mws...)
}

// Use attaches middleware to the group prefix node.
func (g *Group) Use(mws ...Middleware) error {
	prefix := g.prefix
	if prefix == "" {
		prefix = "/"
	}
	return g.domain.Use(prefix, mws...)
}

// UseMethod attaches middleware to the group prefix node that only wraps
// routes bound to method.
func (g *Group) UseMethod(method string, mws ...Middleware) error {
	prefix := g.prefix
	if prefix == "" {
		prefix = "/"
	}
	return g.domain.UseMethod(method, prefix, mws...)
}

// mountMethods are the methods a mounted handler is bound to.
var mountMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
}

// Mount binds handler to the group prefix joined with prefix and to every
// path below it, for all standard methods. The handler sees the request
// path with the mount prefix removed, "/" for the prefix itself. All
// bindings are published in one tree update.
func (g *Group) Mount(prefix string, handler http.Handler, mws ...Middleware) error {
	base := strings.TrimSuffix(joinPattern(g.prefix, prefix), "/")
	if base == "" {
		base = "/"
	}
	if handler == nil {
		return newRegistrationError("mount", base, "", ErrNilHandler, "")
	}

	tail := joinPattern(base, "*")
	stripped := stripMountPrefix(handler)

	err := g.domain.Update(func(t *Tree) error {
		for _, method := range mountMethods {
			for _, pattern := range []string{base, tail} {
				if err := t.Insert(pattern, method, mws, stripped); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.router.logger.Debug("handler mounted",
		zap.String("domain", g.domain.Pattern()),
		zap.String("prefix", base),
	)

	return nil
}

// stripMountPrefix rewrites the request path to the part captured by the
// mount wildcard.
func stripMountPrefix(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tail := RouteParams(r).ByName(wildcardKey)
		p := "/" + tail
		if tail != "" && strings.HasSuffix(r.URL.Path, "/") {
			p += "/"
		}

		r2 := new(http.Request)
		*r2 = *r
		u := *r.URL
		u.Path = p
		u.RawPath = ""
		r2.URL = &u

		h.ServeHTTP(w, r2)
	})
}

// Group returns a nested group. mws, if any, is attached to the nested
// prefix node.
func (g *Group) Group(prefix string, mws ...Middleware) (*Group, error) {
	sub := &Group{
		router: g.router,
		domain: g.domain,
		prefix: strings.TrimSuffix(joinPattern(g.prefix, prefix), "/"),
	}
	if len(mws) > 0 {
		if err := sub.Use(mws...); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// joinPattern joins a group prefix and a route pattern with one slash.
func joinPattern(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	if pattern == "" || pattern == "/" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(pattern, "/")
}
