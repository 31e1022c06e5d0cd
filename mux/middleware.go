package mux

// HandlerFunc handles a matched request. The returned value is normalized
// into a Response by the dispatcher; a non-nil error either aborts with the
// response it carries (*AbortError) or is treated as a defect and answered
// with 500.
type HandlerFunc func(c *Context) (any, error)

// MiddlewareFunc wraps a handler. Middleware runs around every dispatch,
// including the not-found and method-not-allowed fallbacks, in which case
// c.Rule() is nil.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// chain wraps h with mws so that mws[0] is the outermost.
func chain(h HandlerFunc, mws []MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
