package mux

import (
	"errors"
	"strings"
)

// Registration errors. They are returned wrapped in a *RegistrationError,
// so callers should test for them with errors.Is.
var (
	// ErrMalformedPattern is returned when a route pattern, a parameter
	// name or a host pattern cannot be parsed.
	ErrMalformedPattern = errors.New("mux: malformed pattern")

	// ErrInvalidRegexp is returned when a :name(pattern) constraint does
	// not compile.
	ErrInvalidRegexp = errors.New("mux: invalid regexp constraint")

	// ErrDuplicateRoute is returned when the same method is registered
	// twice on the same pattern.
	ErrDuplicateRoute = errors.New("mux: duplicate route")

	// ErrConflictingRoute is returned when a pattern cannot coexist with
	// the routes already in the tree, e.g. a wildcard next to other
	// children or two parameters with different names at one level.
	ErrConflictingRoute = errors.New("mux: conflicting route")

	// ErrDuplicateDomain is returned when a host pattern is registered
	// twice.
	ErrDuplicateDomain = errors.New("mux: duplicate domain")

	// ErrAmbiguousDomainPattern is returned for host patterns whose
	// wildcard is not a whole leading label.
	ErrAmbiguousDomainPattern = errors.New("mux: ambiguous domain pattern")

	// ErrInvalidMethod is returned when a method token is empty or
	// contains characters outside the RFC 9110 token set.
	ErrInvalidMethod = errors.New("mux: invalid method")

	// ErrNilHandler is returned when a route is registered without a
	// handler.
	ErrNilHandler = errors.New("mux: nil handler")
)

// RegistrationError describes a failed Insert, Use or RegisterDomain call.
type RegistrationError struct {
	// Op is the failing operation: "insert", "use", "mount" or
	// "register domain".
	Op string
	// Pattern is the route or host pattern being registered.
	Pattern string
	// Method is the HTTP method, empty for operations without one.
	Method string
	// Detail is an optional human readable explanation.
	Detail string
	// Err is one of the Err* sentinels of this package.
	Err error
}

func (e *RegistrationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.Method != "" {
		b.WriteByte(' ')
		b.WriteString(e.Method)
	}
	b.WriteString(" \"")
	b.WriteString(e.Pattern)
	b.WriteByte('"')
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

func newRegistrationError(op, pattern, method string, err error, detail string) *RegistrationError {
	return &RegistrationError{
		Op:      op,
		Pattern: pattern,
		Method:  method,
		Detail:  detail,
		Err:     err,
	}
}
