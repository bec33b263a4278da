package mux

import (
	"maps"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// Domain is an independent routing namespace selected by host. It owns a
// tree snapshot that request matching reads without locking; mutations
// are applied to a clone under the domain's mutex and published with an
// atomic pointer swap.
type Domain struct {
	pattern string
	logger  *zap.Logger

	mu   sync.Mutex
	tree atomic.Pointer[Tree]
}

func newDomain(pattern string, logger *zap.Logger) *Domain {
	d := &Domain{
		pattern: pattern,
		logger:  logger,
	}
	d.tree.Store(NewTree())
	return d
}

// Pattern returns the normalized host pattern, "" for the default domain.
func (d *Domain) Pattern() string {
	return d.pattern
}

// Tree returns the current snapshot. It must be treated as read-only;
// use Update to change it.
func (d *Domain) Tree() *Tree {
	return d.tree.Load()
}

// Insert registers a route in the domain. See Tree.Insert.
func (d *Domain) Insert(pattern, method string, mws []Middleware, handler http.Handler) error {
	return d.Update(func(t *Tree) error {
		return t.Insert(pattern, method, mws, handler)
	})
}

// Use attaches node-level middleware at prefix. See Tree.Use.
func (d *Domain) Use(prefix string, mws ...Middleware) error {
	return d.Update(func(t *Tree) error {
		return t.Use(prefix, mws...)
	})
}

// UseMethod attaches node-level middleware for routes bound to method.
// See Tree.UseMethod.
func (d *Domain) UseMethod(method, prefix string, mws ...Middleware) error {
	return d.Update(func(t *Tree) error {
		return t.UseMethod(method, prefix, mws...)
	})
}

// Update applies fn to a private copy of the current tree and publishes
// the copy when fn succeeds. Requests in flight keep matching against the
// previous snapshot. Batching registrations in one Update costs a single
// copy.
func (d *Domain) Update(fn func(*Tree) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.tree.Load().Clone()
	if err := fn(next); err != nil {
		d.logger.Debug("route update rejected",
			zap.String("domain", d.pattern),
			zap.Error(err),
		)
		return err
	}

	d.tree.Store(next)
	d.logger.Debug("route tree published",
		zap.String("domain", d.pattern),
		zap.Int("routes", next.Len()),
	)

	return nil
}

// Replace publishes t as the domain's tree. t must not be modified
// afterwards.
func (d *Domain) Replace(t *Tree) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tree.Store(t)
}

// Match matches path and method against the current snapshot.
func (d *Domain) Match(path, method string, res *MatchResult) {
	d.tree.Load().Match(path, method, res)
	res.Domain = d
}

// hostTable is an immutable lookup table; the Registry swaps whole tables.
type hostTable struct {
	exact    map[string]*Domain
	wildcard map[string]*Domain // keyed by the suffix after "*."
}

// Registry maps host patterns to domains. Patterns are either exact hosts
// or "*." followed by a suffix, matching any host with exactly one more
// leading label. Resolution prefers exact hosts, then wildcards, then the
// default domain when one was created.
type Registry struct {
	logger *zap.Logger

	mu    sync.Mutex
	table atomic.Pointer[hostTable]
	def   atomic.Pointer[Domain]
}

// NewRegistry returns an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	r.table.Store(&hostTable{
		exact:    map[string]*Domain{},
		wildcard: map[string]*Domain{},
	})
	return r
}

// RegisterDomain creates a domain with an empty tree for hostPattern.
func (r *Registry) RegisterDomain(hostPattern string) (*Domain, error) {
	host, wildcard, err := parseHostPattern(hostPattern)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.table.Load()
	next := &hostTable{
		exact:    maps.Clone(cur.exact),
		wildcard: maps.Clone(cur.wildcard),
	}

	target := next.exact
	normalized := host
	if wildcard {
		target = next.wildcard
		normalized = "*." + host
	}
	if _, dup := target[host]; dup {
		return nil, newRegistrationError("register domain", hostPattern, "", ErrDuplicateDomain, normalized)
	}

	d := newDomain(normalized, r.logger)
	target[host] = d
	r.table.Store(next)

	r.logger.Debug("domain registered", zap.String("domain", normalized))

	return d, nil
}

// Unregister removes the domain registered for hostPattern. It reports
// whether such a domain existed.
func (r *Registry) Unregister(hostPattern string) bool {
	host, wildcard, err := parseHostPattern(hostPattern)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.table.Load()
	next := &hostTable{
		exact:    maps.Clone(cur.exact),
		wildcard: maps.Clone(cur.wildcard),
	}

	target := next.exact
	if wildcard {
		target = next.wildcard
	}
	if _, ok := target[host]; !ok {
		return false
	}
	delete(target, host)
	r.table.Store(next)

	return true
}

// Lookup returns the domain registered for exactly hostPattern.
func (r *Registry) Lookup(hostPattern string) (*Domain, bool) {
	host, wildcard, err := parseHostPattern(hostPattern)
	if err != nil {
		return nil, false
	}

	t := r.table.Load()
	if wildcard {
		d, ok := t.wildcard[host]
		return d, ok
	}
	d, ok := t.exact[host]
	return d, ok
}

// Default returns the fallback domain used for hosts that match no
// pattern, creating it on first use.
func (r *Registry) Default() *Domain {
	if d := r.def.Load(); d != nil {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.def.Load(); d != nil {
		return d
	}
	d := newDomain("", r.logger)
	r.def.Store(d)

	return d
}

// Domains returns the registered domains sorted by pattern, without the
// default domain.
func (r *Registry) Domains() []*Domain {
	t := r.table.Load()

	out := make([]*Domain, 0, len(t.exact)+len(t.wildcard))
	for _, d := range t.exact {
		out = append(out, d)
	}
	for _, d := range t.wildcard {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Domain) int {
		return strings.Compare(a.pattern, b.pattern)
	})

	return out
}

// ResolveDomain returns the domain serving host. host may carry a port
// and is compared case-insensitively.
func (r *Registry) ResolveDomain(host string) (*Domain, bool) {
	host = normalizeHost(host)
	t := r.table.Load()

	if d, ok := t.exact[host]; ok {
		return d, true
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		if d, ok := t.wildcard[host[i+1:]]; ok {
			return d, true
		}
	}
	if d := r.def.Load(); d != nil {
		return d, true
	}

	return nil, false
}

// parseHostPattern validates and normalizes a host pattern. It returns the
// host, or the suffix after "*." for wildcard patterns.
func parseHostPattern(pattern string) (string, bool, error) {
	fail := func(err error, detail string) (string, bool, error) {
		return "", false, newRegistrationError("register domain", pattern, "", err, detail)
	}

	host := trimHost(pattern)
	wildcard := false
	if rest, ok := strings.CutPrefix(host, "*."); ok {
		host, wildcard = rest, true
	}

	if strings.IndexByte(host, '*') >= 0 {
		return fail(ErrAmbiguousDomainPattern, "wildcard must be the whole leading label")
	}
	if host == "" {
		if wildcard {
			return fail(ErrAmbiguousDomainPattern, "bare wildcard, use the default domain")
		}
		return fail(ErrMalformedPattern, "empty host")
	}
	if net.ParseIP(host) != nil {
		if wildcard {
			return fail(ErrMalformedPattern, "wildcard on an IP address")
		}
		return host, false, nil
	}

	host, err := asciiHost(host)
	if err != nil {
		return fail(ErrMalformedPattern, err.Error())
	}

	for label := range strings.SplitSeq(host, ".") {
		if label == "" {
			return fail(ErrMalformedPattern, "empty label")
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !('a' <= c && c <= 'z' || '0' <= c && c <= '9' || c == '-' || c == '_') {
				return fail(ErrMalformedPattern, "invalid character in "+label)
			}
		}
	}

	return host, wildcard, nil
}

// normalizeHost prepares a request host for lookup: port and trailing dot
// stripped, lower-cased, internationalized names in ASCII form.
func normalizeHost(host string) string {
	host = trimHost(host)
	if ascii, err := asciiHost(host); err == nil {
		return ascii
	}
	return host
}

// trimHost strips a port, IPv6 brackets and a trailing dot.
func trimHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.TrimSuffix(host, ".")
}

// asciiHost lower-cases host and converts internationalized labels to
// punycode (RFC 5891). Pure ASCII input skips the IDNA profile.
func asciiHost(host string) (string, error) {
	for i := 0; i < len(host); i++ {
		if host[i] >= 0x80 {
			return idna.Lookup.ToASCII(host)
		}
	}
	return strings.ToLower(host), nil
}
