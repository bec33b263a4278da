// Package mux implements a domain-aware request router built on a trie of
// path segments.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics)
//   - RFC 3986 (URIs)
//   - RFC 5891 (internationalized domain names)
//
// # Router
//
// Create a new router and register handlers:
//
//	r := mux.NewRouter()
//	r.HandleFunc(http.MethodGet, "/articles/:category/:id(int)", ArticleHandler)
//	r.HandleFunc(http.MethodGet, "/static/*filepath", StaticHandler)
//	http.ListenAndServe(":8080", r)
//
// Registration returns an error instead of panicking. A failed
// registration leaves the routing table unchanged.
//
// # Patterns
//
// A pattern is a "/"-separated list of segments. Each segment is one of:
//
//	users           static literal, matched exactly
//	:id             parameter, captures one non-empty segment
//	:id([0-9]+)     parameter constrained by a regular expression
//	*               wildcard, captures the non-empty remainder as "*"
//	*filepath       named wildcard, must be the last segment
//
// When several siblings could match a request segment, they are tried in
// the order static, regexp (registration order), parameter, wildcard. The
// matcher backtracks, so a dead end below a static segment falls through to
// a parameter sibling.
//
// A parameter and a wildcard cannot share a level with differently named
// siblings of the same kind, and a wildcard must be the only child of its
// parent. Such registrations fail with ErrConflictingRoute.
//
// # Pattern Macros
//
// Instead of writing full regex patterns, constraints can name a macro:
//
//	r.HandleFunc(http.MethodGet, "/users/:id(uuid)", handler)
//	r.HandleFunc(http.MethodGet, "/events/:d(date)", handler)
//
// Available macros:
//
//	uuid     - RFC 4122 UUID (e.g. 550e8400-e29b-41d4-a716-446655440000)
//	int      - unsigned integer (e.g. 42)
//	float    - decimal number (e.g. 3.14, 42, .5)
//	slug     - URL-safe slug (e.g. my-post-title)
//	alpha    - alphabetic characters (e.g. hello)
//	alphanum - alphanumeric characters (e.g. abc123)
//	date     - ISO 8601 date (e.g. 2024-01-15)
//	hex      - hexadecimal string (e.g. deadBEEF)
//	domain   - domain name per RFC 1123 (e.g. example.com)
//
// Any other constraint is compiled as a regular expression anchored to the
// whole segment.
//
// # Path Variables
//
// Captured parameters are stored in the request context:
//
//	id := mux.RouteParams(r).ByName("id")
//	vars := mux.Vars(r)
//
// # Domains
//
// Every router owns a Registry of domains. A domain is either an exact host
// or a "*." wildcard covering one additional leading label. Hosts are
// compared case-insensitively, without port, and in their ASCII form.
// Routes registered on the router itself belong to the default domain,
// which serves hosts that match no registered pattern:
//
//	api, _ := r.Host("api.example.com")
//	api.HandleFunc(http.MethodGet, "/v1/status", handler)
//
//	tenants, _ := r.Host("*.example.com")
//	tenants.HandleFunc(http.MethodGet, "/", handler)
//
// # Middleware
//
// Middleware carries a priority. Lower priorities run first; equal
// priorities keep registration order. Middleware attached to a group
// applies to every route below the group prefix, including routes added
// later:
//
//	v1, _ := r.Group("/v1", mux.WithPriority(auth, 10))
//	v1.HandleFunc(http.MethodGet, "/me", handler, mux.WithPriority(audit, 20))
//
// UseMethod limits group middleware to routes of one method:
//
//	v1.UseMethod(http.MethodPost, mux.WithPriority(csrf, 5))
//
// The chain of a route is composed once at registration, never per request.
//
// # Mounting
//
// Mount hands every request below a prefix to another handler, for all
// standard methods, with the prefix removed from the request path:
//
//	r.Mount("/debug", debugMux)
//
// # Method handling
//
// A path that matches with an unbound method produces 405 Method Not
// Allowed with an Allow header listing every method bound on the path
// (RFC 9110 Section 15.5.6). HEAD requests fall back to the GET binding.
// WithAutoOptions answers OPTIONS requests without an explicit route.
//
// # Concurrency
//
// Each domain publishes immutable tree snapshots through an atomic pointer.
// Requests never take a lock; registrations clone the current tree, modify
// the clone and swap it in. Domain.Update batches several registrations
// into one snapshot.
package mux
