package muxconfig

import (
	"fmt"
	"strings"

	"github.com/vitalvas/routetree/mux"
)

// Apply publishes the domains of m on router. Every domain tree is built
// in full before any of them is swapped in; on error the router is left
// as it was. Domains registered on the router but absent from m are not
// touched.
func Apply(router *mux.Router, m *Manifest, catalog *Catalog) error {
	trees, err := Build(m, catalog)
	if err != nil {
		return err
	}

	reg := router.Registry()
	domains := make([]*mux.Domain, len(m.Domains))
	owner := make(map[*mux.Domain]string, len(m.Domains))
	var created []string
	rollback := func() {
		for _, host := range created {
			reg.Unregister(host)
		}
	}

	for i, dc := range m.Domains {
		d, ok := lookupDomain(reg, dc.Host)
		if !ok {
			var err error
			if d, err = reg.RegisterDomain(dc.Host); err != nil {
				rollback()
				return err
			}
			created = append(created, dc.Host)
		}
		if prev, dup := owner[d]; dup {
			rollback()
			return fmt.Errorf("%w: hosts %q and %q name the same domain", ErrInvalidManifest, prev, dc.Host)
		}
		owner[d] = dc.Host
		domains[i] = d
	}

	for i, d := range domains {
		d.Replace(trees[i])
	}

	return nil
}

// lookupDomain returns the registered domain for a manifest host, the
// default domain for an empty host.
func lookupDomain(reg *mux.Registry, host string) (*mux.Domain, bool) {
	if host == "" {
		return reg.Default(), true
	}
	return reg.Lookup(host)
}

// Build returns one tree per domain of m, in manifest order.
func Build(m *Manifest, catalog *Catalog) ([]*mux.Tree, error) {
	trees := make([]*mux.Tree, 0, len(m.Domains))
	for _, dc := range m.Domains {
		b := builder{tree: mux.NewTree(), catalog: catalog, host: dc.Host}
		if err := b.scope("", dc.Middlewares, dc.Routes, dc.Groups); err != nil {
			return nil, err
		}
		trees = append(trees, b.tree)
	}
	return trees, nil
}

type builder struct {
	tree    *mux.Tree
	catalog *Catalog
	host    string
}

func (b *builder) scope(prefix string, refs []MiddlewareRef, routes []RouteConfig, groups []GroupConfig) error {
	if len(refs) > 0 {
		mws, err := b.resolve(refs)
		if err != nil {
			return err
		}
		at := prefix
		if at == "" {
			at = "/"
		}
		if err := b.tree.Use(at, mws...); err != nil {
			return b.wrap(err)
		}
	}

	for _, rc := range routes {
		if err := b.route(prefix, rc); err != nil {
			return err
		}
	}

	for _, gc := range groups {
		sub := strings.TrimSuffix(joinPrefix(prefix, gc.Prefix), "/")
		if err := b.scope(sub, gc.Middlewares, gc.Routes, gc.Groups); err != nil {
			return err
		}
	}

	return nil
}

func (b *builder) route(prefix string, rc RouteConfig) error {
	handler, ok := b.catalog.Handler(rc.Handler)
	if !ok {
		return fmt.Errorf("%w: domain %q: unknown handler %q", ErrInvalidManifest, b.host, rc.Handler)
	}

	mws, err := b.resolve(rc.Middlewares)
	if err != nil {
		return err
	}

	pattern := joinPrefix(prefix, rc.Pattern)
	for _, method := range rc.Methods {
		if err := b.tree.Insert(pattern, method, mws, handler); err != nil {
			return b.wrap(err)
		}
	}
	return nil
}

func (b *builder) resolve(refs []MiddlewareRef) ([]mux.Middleware, error) {
	mws := make([]mux.Middleware, 0, len(refs))
	for _, ref := range refs {
		mw, ok := b.catalog.middleware(ref.Name)
		if !ok {
			return nil, fmt.Errorf("%w: domain %q: unknown middleware %q", ErrInvalidManifest, b.host, ref.Name)
		}
		mws = append(mws, mux.WithPriority(mw, ref.Priority))
	}
	return mws, nil
}

func (b *builder) wrap(err error) error {
	return fmt.Errorf("domain %q: %w", b.host, err)
}

// joinPrefix joins a group prefix and a pattern with one slash.
func joinPrefix(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	if pattern == "" || pattern == "/" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(pattern, "/")
}
