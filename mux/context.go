package mux

import (
	"context"
	"net/http"
	"net/url"
)

// Context carries the state of a single request through the handler chain.
//
// A Context is created by the dispatcher immediately before the handler is
// invoked and dropped once the response is produced. It is never shared
// between requests, so it needs no locking; handlers must not retain it past
// their return.
type Context struct {
	ctx    context.Context
	app    *App
	req    Request
	rule   *Rule
	vars   Vars
	values map[string]any
}

// newContext builds the context for one dispatch. Nil header and query maps
// are replaced with empty ones so accessors never fail.
func newContext(ctx context.Context, app *App, req Request, rule *Rule, vars Vars) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if req.Query == nil {
		req.Query = make(url.Values)
	}
	return &Context{
		ctx:  ctx,
		app:  app,
		req:  req,
		rule: rule,
		vars: vars,
	}
}

// Context returns the request's context.Context. It is cancelled when the
// transport abandons the request.
func (c *Context) Context() context.Context {
	return c.ctx
}

// SetContext replaces the request's context.Context for the rest of the
// handler chain. Middleware uses it to attach values such as a trace span.
// A nil ctx is ignored.
func (c *Context) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// App returns the application dispatching the request.
func (c *Context) App() *App {
	return c.app
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.req.Method
}

// Path returns the request path.
func (c *Context) Path() string {
	return c.req.Path
}

// Rule returns the matched rule, or nil when the request did not match one
// (404 and 405 handlers).
func (c *Context) Rule() *Rule {
	return c.rule
}

// Endpoint returns the endpoint of the matched rule, or "".
func (c *Context) Endpoint() string {
	if c.rule == nil {
		return ""
	}
	return c.rule.endpoint
}

// Vars returns the typed values bound to the rule's placeholders.
func (c *Context) Vars() Vars {
	return c.vars
}

// Var returns the value bound to the placeholder name and whether it exists.
func (c *Context) Var(name string) (any, bool) {
	return c.vars.Get(name)
}

// StringVar returns the placeholder value formatted as a string, or "".
func (c *Context) StringVar(name string) string {
	return c.vars.String(name)
}

// IntVar returns the value of an int placeholder.
func (c *Context) IntVar(name string) (int, bool) {
	return c.vars.Int(name)
}

// Query returns the query parameters. Repeated keys keep all their values
// in order.
func (c *Context) Query() url.Values {
	return c.req.Query
}

// QueryValue returns the first value of the query parameter name, or "".
func (c *Context) QueryValue(name string) string {
	return c.req.Query.Get(name)
}

// QueryValues returns all values of the query parameter name.
func (c *Context) QueryValues(name string) []string {
	return c.req.Query[name]
}

// Header returns the request header. Lookups through its methods are
// case-insensitive.
func (c *Context) Header() http.Header {
	return c.req.Header
}

// HeaderValue returns the first value of the request header name, or "".
func (c *Context) HeaderValue(name string) string {
	return c.req.Header.Get(name)
}

// Body returns the raw request body.
func (c *Context) Body() []byte {
	return c.req.Body
}

// Set stores value under key in the request-scoped extension store.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = value
}

// Get returns the value stored under key and whether it was set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// URLFor builds a URL for endpoint; see App.URLFor.
func (c *Context) URLFor(endpoint string, values map[string]any) (string, error) {
	return c.app.URLFor(endpoint, values)
}
