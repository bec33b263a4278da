package mux

import (
	"strings"
)

// segmentKind is the closed set of pattern token kinds. Matching switches
// over it exhaustively; the declaration order is also the sibling
// precedence order used while walking the tree.
type segmentKind uint8

const (
	segStatic segmentKind = iota
	segRegexp
	segParam
	segWildcard
)

func (k segmentKind) String() string {
	switch k {
	case segStatic:
		return "static"
	case segRegexp:
		return "regexp"
	case segParam:
		return "param"
	case segWildcard:
		return "wildcard"
	}
	return "unknown"
}

// wildcardKey is the parameter name bound by an unnamed "*" wildcard.
const wildcardKey = "*"

// segment is one parsed "/"-delimited token of a route pattern.
type segment struct {
	kind segmentKind
	// text is the literal for static segments and the capture name for
	// all others.
	text string
	// expr is the constraint as written between the parentheses of a
	// regexp segment, before macro expansion.
	expr string
	re   varMatcher
}

// same reports whether two segments are structurally identical and may
// share a tree node.
func (s segment) same(o segment) bool {
	return s.kind == o.kind && s.text == o.text && s.expr == o.expr
}

// String renders the segment back in pattern syntax.
func (s segment) String() string {
	switch s.kind {
	case segStatic:
		return s.text
	case segRegexp:
		return ":" + s.text + "(" + s.expr + ")"
	case segParam:
		return ":" + s.text
	case segWildcard:
		if s.text == wildcardKey {
			return "*"
		}
		return "*" + s.text
	}
	return ""
}

// parsePattern splits a route pattern into segments. The root pattern "/"
// yields no segments. Errors carry Op "insert"; the caller fills in the
// method.
func parsePattern(pattern string) ([]segment, *RegistrationError) {
	malformed := func(detail string) *RegistrationError {
		return newRegistrationError("insert", pattern, "", ErrMalformedPattern, detail)
	}

	if pattern == "" || pattern[0] != '/' {
		return nil, malformed("pattern must begin with '/'")
	}

	tokens, ok := splitTokens(trimSlashes(pattern))
	if !ok {
		return nil, malformed("unbalanced parentheses")
	}

	segs := make([]segment, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))

	for i, tok := range tokens {
		if tok == "" {
			return nil, malformed("empty segment")
		}

		var seg segment
		switch tok[0] {
		case ':':
			name, expr, hasExpr := strings.Cut(tok[1:], "(")
			if !isIdentifier(name) {
				return nil, malformed("invalid parameter name in " + tok)
			}
			seg = segment{kind: segParam, text: name}
			if hasExpr {
				if end := constraintEnd(expr); end <= 0 || end != len(expr)-1 {
					return nil, malformed("invalid constraint in " + tok)
				}
				expr = expr[:len(expr)-1]
				re, err := compileConstraint(expr)
				if err != nil {
					return nil, newRegistrationError("insert", pattern, "", ErrInvalidRegexp, err.Error())
				}
				seg = segment{kind: segRegexp, text: name, expr: expr, re: re}
			}
		case '*':
			name := tok[1:]
			if name == "" {
				name = wildcardKey
			} else if !isIdentifier(name) {
				return nil, malformed("invalid wildcard name in " + tok)
			}
			if i != len(tokens)-1 {
				return nil, malformed("wildcard " + tok + " must be the last segment")
			}
			seg = segment{kind: segWildcard, text: name}
		default:
			seg = segment{kind: segStatic, text: tok}
		}

		if seg.kind != segStatic {
			if _, dup := seen[seg.text]; dup {
				return nil, malformed("duplicate parameter " + seg.text)
			}
			seen[seg.text] = struct{}{}
		}

		segs = append(segs, seg)
	}

	return segs, nil
}

// splitTokens splits s on '/' outside of parentheses. It reports false
// when the parentheses are unbalanced.
func splitTokens(s string) ([]string, bool) {
	if s == "" {
		return nil, true
	}

	var (
		tokens []string
		depth  int
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth--; depth < 0 {
				return nil, false
			}
		case '/':
			if depth == 0 {
				tokens = append(tokens, s[start:i])
				start = i + 1
			}
		case '\\':
			// keep escaped characters of a constraint intact
			if depth > 0 {
				i++
			}
		}
	}
	if depth != 0 {
		return nil, false
	}

	return append(tokens, s[start:]), true
}

// trimSlashes removes one leading and one trailing slash.
func trimSlashes(p string) string {
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if len(p) > 0 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// isIdentifier reports whether s is an ASCII identifier: a letter or
// underscore followed by letters, digits or underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// constraintEnd returns the index in s of the parenthesis closing the
// constraint opened just before s, or -1 when it is never closed. Escaped
// characters are skipped, as in splitTokens.
func constraintEnd(s string) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return i
			}
		}
	}
	return -1
}
