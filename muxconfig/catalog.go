package muxconfig

import (
	"net/http"
	"sync"

	"github.com/vitalvas/routetree/mux"
)

// Catalog maps the names used in a manifest to handlers and middleware.
// It is safe for concurrent use.
type Catalog struct {
	mu          sync.RWMutex
	handlers    map[string]http.Handler
	middlewares map[string]mux.MiddlewareFunc
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		handlers:    map[string]http.Handler{},
		middlewares: map[string]mux.MiddlewareFunc{},
	}
}

// Handle registers handler under name, replacing any previous one.
func (c *Catalog) Handle(name string, handler http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = handler
}

// HandleFunc registers a handler function under name.
func (c *Catalog) HandleFunc(name string, f func(http.ResponseWriter, *http.Request)) {
	c.Handle(name, http.HandlerFunc(f))
}

// Middleware registers mw under name, replacing any previous one.
func (c *Catalog) Middleware(name string, mw mux.MiddlewareFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares[name] = mw
}

// Handler returns the handler registered under name.
func (c *Catalog) Handler(name string) (http.Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[name]
	return h, ok
}

func (c *Catalog) middleware(name string) (mux.MiddlewareFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mw, ok := c.middlewares[name]
	return mw, ok
}
