package mux

import (
	"maps"
	"net/http"
	"slices"
	"sort"
	"strings"
)

// noChild marks an absent param or wildcard child.
const noChild int32 = -1

// node is one element of the tree arena. Children are referenced by their
// index in Tree.nodes; index 0 is the root and stands for "/".
type node struct {
	seg    segment
	parent int32

	statics  map[string]int32
	regexps  []int32
	param    int32
	wildcard int32

	// middlewares is the node-level (group) middleware applied to the
	// routes at or below this node.
	middlewares []scopedMiddleware
	routes      []*Route
}

// scopedMiddleware is node-level middleware limited to routes bound to
// method, or to every route when method is empty.
type scopedMiddleware struct {
	method string
	mw     Middleware
}

func (s scopedMiddleware) appliesTo(method string) bool {
	return s.method == "" || s.method == method
}

func newNode(seg segment, parent int32) node {
	return node{
		seg:      seg,
		parent:   parent,
		param:    noChild,
		wildcard: noChild,
	}
}

// hasChildren reports whether the node has any non-wildcard child.
func (n *node) hasChildren() bool {
	return len(n.statics) > 0 || len(n.regexps) > 0 || n.param != noChild
}

// Tree is a route trie for one domain. A Tree is not safe for concurrent
// mutation; the Domain publishes immutable snapshots for serving.
type Tree struct {
	nodes     []node
	routes    int
	maxParams int
}

// NewTree returns an empty tree holding only the root node.
func NewTree() *Tree {
	return &Tree{
		nodes: []node{newNode(segment{}, noChild)},
	}
}

// Len returns the number of registered method bindings.
func (t *Tree) Len() int {
	return t.routes
}

// MaxParams returns the largest number of parameters any route captures.
func (t *Tree) MaxParams() int {
	return t.maxParams
}

// Insert registers handler for method on pattern. mws is the route-level
// middleware; it is merged with the node-level middleware of every node on
// the pattern's path, sorted by priority and composed once here.
//
// Insert validates the whole registration before touching the tree, so a
// failed call leaves the tree unchanged.
func (t *Tree) Insert(pattern, method string, mws []Middleware, handler http.Handler) error {
	method, ok := normalizeMethod(method)
	if !ok {
		return newRegistrationError("insert", pattern, method, ErrInvalidMethod, "")
	}
	if handler == nil {
		return newRegistrationError("insert", pattern, method, ErrNilHandler, "")
	}

	segs, perr := parsePattern(pattern)
	if perr != nil {
		perr.Method = method
		return perr
	}

	idx, rest, err := t.locate(segs)
	if err != nil {
		err.Op, err.Pattern, err.Method = "insert", pattern, method
		return err
	}

	if len(rest) == 0 {
		for _, r := range t.nodes[idx].routes {
			if r.method == method {
				return newRegistrationError("insert", pattern, method, ErrDuplicateRoute,
					"already registered as "+r.template)
			}
		}
	}

	for _, seg := range rest {
		idx = t.addChild(idx, seg)
	}

	route := &Route{
		method:      method,
		template:    templateOf(segs),
		handler:     handler,
		middlewares: slices.Clone(mws),
		params:      paramCount(segs),
	}
	route.chain = compose(handler, t.effectiveMiddleware(idx, method, route.middlewares))

	n := &t.nodes[idx]
	n.routes = append(n.routes, route.seal())

	t.routes++
	t.maxParams = max(t.maxParams, route.params)

	return nil
}

// Use attaches node-level middleware to the node at prefix, creating the
// intermediate nodes if needed, and recomposes the chain of every route at
// or below that node.
func (t *Tree) Use(prefix string, mws ...Middleware) error {
	return t.use("", prefix, mws)
}

// UseMethod is like Use but the middleware only wraps routes bound to
// method. Implicit HEAD requests served by a GET route run the GET chain.
func (t *Tree) UseMethod(method, prefix string, mws ...Middleware) error {
	m, ok := normalizeMethod(method)
	if !ok {
		return newRegistrationError("use", prefix, m, ErrInvalidMethod, "")
	}
	return t.use(m, prefix, mws)
}

func (t *Tree) use(method, prefix string, mws []Middleware) error {
	segs, perr := parsePattern(prefix)
	if perr != nil {
		perr.Op, perr.Method = "use", method
		return perr
	}

	idx, rest, err := t.locate(segs)
	if err != nil {
		err.Op, err.Pattern, err.Method = "use", prefix, method
		return err
	}
	for _, seg := range rest {
		idx = t.addChild(idx, seg)
	}

	n := &t.nodes[idx]
	for _, mw := range mws {
		n.middlewares = append(n.middlewares, scopedMiddleware{method: method, mw: mw})
	}

	t.recompose(idx)

	return nil
}

// locate walks the existing nodes for segs. It returns the deepest
// existing node and the segments that still have to be created. The first
// segment to be created is checked against the siblings it would join;
// later ones land in fresh nodes and cannot conflict.
func (t *Tree) locate(segs []segment) (int32, []segment, *RegistrationError) {
	idx := int32(0)
	for i, seg := range segs {
		child, err := t.child(idx, seg)
		if err != nil {
			return 0, nil, err
		}
		if child == noChild {
			return idx, segs[i:], nil
		}
		idx = child
	}
	return idx, nil, nil
}

// child returns the existing child of idx that is structurally identical
// to seg, noChild when seg can be added as a new child, or a conflict.
func (t *Tree) child(idx int32, seg segment) (int32, *RegistrationError) {
	n := &t.nodes[idx]

	conflict := func(detail string) (int32, *RegistrationError) {
		return noChild, &RegistrationError{Err: ErrConflictingRoute, Detail: detail}
	}

	switch seg.kind {
	case segStatic:
		if c, ok := n.statics[seg.text]; ok {
			return c, nil
		}
	case segRegexp:
		for _, c := range n.regexps {
			if t.nodes[c].seg.same(seg) {
				return c, nil
			}
		}
	case segParam:
		if n.param != noChild {
			if other := t.nodes[n.param].seg; !other.same(seg) {
				return conflict(seg.String() + " conflicts with " + other.String())
			}
			return n.param, nil
		}
	case segWildcard:
		if n.wildcard != noChild {
			if other := t.nodes[n.wildcard].seg; !other.same(seg) {
				return conflict(seg.String() + " conflicts with " + other.String())
			}
			return n.wildcard, nil
		}
		if n.hasChildren() {
			return conflict("wildcard " + seg.String() + " must be the only child")
		}
		return noChild, nil
	}

	if n.wildcard != noChild {
		return conflict(seg.String() + " conflicts with wildcard " + t.nodes[n.wildcard].seg.String())
	}

	return noChild, nil
}

// addChild appends a new node for seg under parent and returns its index.
func (t *Tree) addChild(parent int32, seg segment) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, newNode(seg, parent))

	p := &t.nodes[parent]
	switch seg.kind {
	case segStatic:
		if p.statics == nil {
			p.statics = make(map[string]int32)
		}
		p.statics[seg.text] = idx
	case segRegexp:
		p.regexps = append(p.regexps, idx)
	case segParam:
		p.param = idx
	case segWildcard:
		p.wildcard = idx
	}

	return idx
}

// effectiveMiddleware returns the sorted middleware for a route bound to
// method at idx: node-level middleware from the root down to idx, then the
// route's own.
func (t *Tree) effectiveMiddleware(idx int32, method string, routeMws []Middleware) []Middleware {
	var path []int32
	for i := idx; i != noChild; i = t.nodes[i].parent {
		path = append(path, i)
	}

	var all []Middleware
	for i := len(path) - 1; i >= 0; i-- {
		for _, sm := range t.nodes[path[i]].middlewares {
			if sm.appliesTo(method) {
				all = append(all, sm.mw)
			}
		}
	}
	all = append(all, routeMws...)

	return sortMiddleware(all)
}

// recompose rebuilds the chains of every route in the subtree rooted at
// idx. Routes may be shared with published snapshots, so they are
// replaced rather than modified.
func (t *Tree) recompose(idx int32) {
	stack := []int32{idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[cur]
		for i, r := range n.routes {
			nr := *r
			nr.chain = compose(nr.handler, t.effectiveMiddleware(cur, nr.method, nr.middlewares))
			n.routes[i] = nr.seal()
		}

		stack = append(stack, t.children(cur)...)
	}
}

// children returns the child indices of idx in precedence order, statics
// sorted by literal.
func (t *Tree) children(idx int32) []int32 {
	n := &t.nodes[idx]

	out := make([]int32, 0, len(n.statics)+len(n.regexps)+2)
	for _, key := range slices.Sorted(maps.Keys(n.statics)) {
		out = append(out, n.statics[key])
	}
	out = append(out, n.regexps...)
	if n.param != noChild {
		out = append(out, n.param)
	}
	if n.wildcard != noChild {
		out = append(out, n.wildcard)
	}

	return out
}

// Clone returns a deep copy of the tree. Routes and compiled constraints
// are immutable and shared.
func (t *Tree) Clone() *Tree {
	nodes := make([]node, len(t.nodes))
	for i := range t.nodes {
		n := t.nodes[i]
		n.statics = maps.Clone(n.statics)
		n.regexps = slices.Clone(n.regexps)
		n.middlewares = slices.Clone(n.middlewares)
		n.routes = slices.Clone(n.routes)
		nodes[i] = n
	}

	return &Tree{
		nodes:     nodes,
		routes:    t.routes,
		maxParams: t.maxParams,
	}
}

// Walk calls fn for every route in the tree, depth first, siblings in
// precedence order and routes of one node in registration order.
// It stops at the first error and returns it.
func (t *Tree) Walk(fn func(*Route) error) error {
	stack := []int32{0}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, r := range t.nodes[cur].routes {
			if err := fn(r); err != nil {
				return err
			}
		}

		children := t.children(cur)
		slices.Reverse(children)
		stack = append(stack, children...)
	}
	return nil
}

// Match resolves path and method into res. res is reset first; its Params
// and Allowed slices are reused, so a caller that recycles a MatchResult
// matches without allocating.
//
// Siblings are tried in the order static, regexp (registration order),
// param, wildcard, backtracking on dead ends. When the path matches but
// the method does not, res.Allowed holds the sorted union of methods bound
// on every terminal node the path reaches.
func (t *Tree) Match(path, method string, res *MatchResult) {
	res.reset()

	p := trimSlashes(path)
	if t.walk(0, p, p == "", strings.ToUpper(method), res) {
		res.Status = MatchFound
		res.Allowed = res.Allowed[:0]
		return
	}

	res.Params = res.Params[:0]
	if len(res.Allowed) > 0 {
		res.Status = MatchMethodNotAllowed
		sort.Strings(res.Allowed)
	}
}

// walk matches the remaining path at node idx. done reports that every
// request segment has been consumed.
func (t *Tree) walk(idx int32, path string, done bool, method string, res *MatchResult) bool {
	n := &t.nodes[idx]

	if done {
		return t.terminal(n, method, res)
	}

	seg, rest, last := path, "", true
	if i := strings.IndexByte(path, '/'); i >= 0 {
		seg, rest, last = path[:i], path[i+1:], false
	}

	if c, ok := n.statics[seg]; ok {
		if t.walk(c, rest, last, method, res) {
			return true
		}
	}

	if seg != "" {
		for _, c := range n.regexps {
			child := &t.nodes[c]
			if !child.seg.re.MatchString(seg) {
				continue
			}
			res.Params = append(res.Params, Param{Key: child.seg.text, Value: seg})
			if t.walk(c, rest, last, method, res) {
				return true
			}
			res.Params = res.Params[:len(res.Params)-1]
		}

		if n.param != noChild {
			res.Params = append(res.Params, Param{Key: t.nodes[n.param].seg.text, Value: seg})
			if t.walk(n.param, rest, last, method, res) {
				return true
			}
			res.Params = res.Params[:len(res.Params)-1]
		}
	}

	if n.wildcard != noChild && path != "" {
		child := &t.nodes[n.wildcard]
		res.Params = append(res.Params, Param{Key: child.seg.text, Value: path})
		if t.terminal(child, method, res) {
			return true
		}
		res.Params = res.Params[:len(res.Params)-1]
	}

	return false
}

// terminal looks up the binding for method on n. HEAD falls back to the
// GET binding. On a miss the node's methods are added to res.Allowed.
func (t *Tree) terminal(n *node, method string, res *MatchResult) bool {
	for _, r := range n.routes {
		if r.method == method {
			res.Route = r
			return true
		}
	}

	if method == http.MethodHead {
		for _, r := range n.routes {
			if r.method == http.MethodGet {
				res.Route = r
				return true
			}
		}
	}

	for _, r := range n.routes {
		res.addAllowed(r.method)
	}

	return false
}

// templateOf renders segs back into a canonical pattern.
func templateOf(segs []segment) string {
	if len(segs) == 0 {
		return "/"
	}

	var b strings.Builder
	for _, seg := range segs {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

func paramCount(segs []segment) int {
	n := 0
	for _, seg := range segs {
		if seg.kind != segStatic {
			n++
		}
	}
	return n
}

// normalizeMethod upper-cases method and validates it as an RFC 9110
// token.
func normalizeMethod(method string) (string, bool) {
	method = strings.ToUpper(method)
	if method == "" {
		return method, false
	}
	for i := 0; i < len(method); i++ {
		if !isTokenChar(method[i]) {
			return method, false
		}
	}
	return method, true
}

func isTokenChar(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
