package mux

import (
	"net/http"
	"path"
)

var (
	defaultNotFoundHandler         = http.NotFoundHandler()
	defaultMethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
)

// cleanPath returns the canonical path for p, eliminating . and .. elements
// per RFC 3986 Section 5.2.4 (remove dot segments).
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// methodNotAllowed replies to the request with an HTTP 405 method not allowed.
// RFC 9110 Section 15.5.6: the Allow header is set by the caller
// (Router.ServeHTTP) before this handler is invoked.
func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
