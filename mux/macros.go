package mux

import (
	"regexp"
	"sync"
)

// varMatcher validates a single path segment against a constraint.
// *regexp.Regexp satisfies this interface.
type varMatcher interface {
	MatchString(string) bool
	String() string
}

// lengthMatcher wraps a regexp with an additional maximum length constraint.
type lengthMatcher struct {
	re     *regexp.Regexp
	maxLen int
}

func (m *lengthMatcher) MatchString(s string) bool {
	return len(s) <= m.maxLen && m.re.MatchString(s)
}

func (m *lengthMatcher) String() string {
	return m.re.String()
}

// patternMacros maps macro names usable as :name(macro) to their
// pre-compiled matchers. A constraint that is not a macro name is
// compiled as a regular expression.
var patternMacros = map[string]varMatcher{
	"uuid":     anchored(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
	"int":      anchored(`[0-9]+`),
	"float":    anchored(`[0-9]*\.?[0-9]+`),
	"slug":     anchored(`[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`),
	"alpha":    anchored(`[a-zA-Z]+`),
	"alphanum": anchored(`[a-zA-Z0-9]+`),
	"date":     anchored(`[0-9]{4}-[0-9]{2}-[0-9]{2}`),
	"hex":      anchored(`[0-9a-fA-F]+`),
	// RFC 1035/1123: labels 1-63 chars, total up to 253 chars.
	"domain": &lengthMatcher{
		re:     anchored(`(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?`),
		maxLen: 253,
	},
}

func anchored(expr string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + expr + `)$`)
}

// constraintCache holds compiled constraints keyed by their source text.
// The number of distinct constraints is bounded by the registered routes,
// and clones of a tree share the cached matchers, which are safe for
// concurrent use.
var constraintCache sync.Map // map[string]varMatcher

// compileConstraint returns the matcher for a segment constraint: a macro
// when expr names one, otherwise expr compiled as an anchored regexp.
func compileConstraint(expr string) (varMatcher, error) {
	if m, ok := patternMacros[expr]; ok {
		return m, nil
	}

	if v, ok := constraintCache.Load(expr); ok {
		return v.(varMatcher), nil
	}

	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, err
	}

	actual, _ := constraintCache.LoadOrStore(expr, varMatcher(re))

	return actual.(varMatcher), nil
}
