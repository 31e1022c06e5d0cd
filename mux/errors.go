package mux

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMethodMismatch is matched by MethodNotAllowedError. It is returned when
// a rule matches the request path but not the request method. Triggers
// 405 Method Not Allowed per RFC 9110 Section 15.5.6.
var ErrMethodMismatch = errors.New("mux: method is not allowed")

// ErrNotFound is matched by NotFoundError. It is returned when no rule
// matches the request path. Triggers 404 Not Found per RFC 9110 Section 15.5.5.
var ErrNotFound = errors.New("mux: no matching route was found")

// ErrInvalidMethod is returned when a rule is registered for a method outside
// the supported set.
var ErrInvalidMethod = errors.New("mux: unsupported method")

// ErrEndpointConflict is returned when a handler is bound to an endpoint that
// already has one.
var ErrEndpointConflict = errors.New("mux: endpoint already has a handler")

// ErrNoRoute is returned by URL building when no rule is registered for the
// requested endpoint.
var ErrNoRoute = errors.New("mux: no rule registered for endpoint")

// PatternError reports a malformed route pattern. It is returned at
// registration time and should be treated as fatal during application
// startup.
type PatternError struct {
	Pattern string
	Reason  string
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("mux: invalid pattern %q: %s", e.Pattern, e.Reason)
}

func patternErrorf(pattern, format string, args ...any) *PatternError {
	return &PatternError{Pattern: pattern, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned by Table.Resolve when no rule matches the path.
type NotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mux: no route for %s %s", e.Method, e.Path)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MethodNotAllowedError is returned by Table.Resolve when rules match the
// path structure but none is registered for the requested method.
type MethodNotAllowedError struct {
	Method string
	Path   string

	// Allowed lists the methods that would have matched, sorted
	// alphabetically per RFC 9110 Section 10.2.1.
	Allowed []string
}

// Error implements the error interface.
func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("mux: method %s not allowed for %s (allowed: %s)",
		e.Method, e.Path, strings.Join(e.Allowed, ", "))
}

// Is reports whether target is ErrMethodMismatch.
func (e *MethodNotAllowedError) Is(target error) bool {
	return target == ErrMethodMismatch
}
