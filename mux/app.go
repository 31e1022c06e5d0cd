package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// App is a web application: a route table, the handlers bound to its
// endpoints and the policies applied while dispatching requests.
//
// It implements the http.Handler interface, so it can be registered to serve
// requests:
//
//	app := mux.NewApp("hello")
//	app.MustRoute("/", "index", func(c *mux.Context) (any, error) {
//	    return "Hello, world!", nil
//	})
//	http.ListenAndServe(":8080", app)
//
// Registration is expected to finish before serving starts, but it is safe
// to add rules and handlers or flip StrictSlash and AutomaticOptions while
// requests are in flight.
type App struct {
	// NotFoundHandler is called when no rule matches the path.
	// If nil, a default handler replies "404 Not Found".
	NotFoundHandler HandlerFunc

	// MethodNotAllowedHandler is called when rules match the path but not
	// the method. If nil, a default handler replies "405 Method Not Allowed".
	// The Allow header is always added to its response.
	MethodNotAllowedHandler HandlerFunc

	// Logger receives dispatch diagnostics. Defects are logged at error
	// level, aborts and routing misses at debug level.
	Logger *zap.Logger

	// ErrorHook, if set, is called with every handler defect before the
	// 500 response is produced.
	ErrorHook func(c *Context, err error)

	// MaxBodyBytes limits the request body read by ServeHTTP. Zero means
	// no limit.
	MaxBodyBytes int64

	name  string
	table *Table

	mu          sync.RWMutex
	handlers    map[string]HandlerFunc
	middlewares []MiddlewareFunc

	// handlerCache caches the middleware-wrapped handler per endpoint
	// to avoid re-wrapping on every request.
	handlerCache sync.Map // map[string]HandlerFunc

	encoders *encoderRegistry

	strictSlash      atomic.Bool
	automaticOptions atomic.Bool
}

// NewApp returns an application with an empty route table.
func NewApp(name string) *App {
	a := &App{
		Logger:   zap.NewNop(),
		name:     name,
		table:    NewTable(),
		handlers: make(map[string]HandlerFunc),
		encoders: newEncoderRegistry(),
	}
	a.automaticOptions.Store(true)
	return a
}

// Name returns the application name.
func (a *App) Name() string {
	return a.name
}

// Table returns the route table of the application.
func (a *App) Table() *Table {
	return a.table
}

// StrictSlash defines the trailing slash behavior. When true, a request for
// "/path" that only matches "/path/" (or vice versa) is redirected with
// 308 Permanent Redirect (RFC 7538), preserving the method and the query.
func (a *App) StrictSlash(value bool) *App {
	a.strictSlash.Store(value)
	return a
}

// AutomaticOptions defines whether OPTIONS requests to a path without an
// OPTIONS rule are answered with 200 and an Allow header. Enabled by default.
func (a *App) AutomaticOptions(value bool) *App {
	a.automaticOptions.Store(value)
	return a
}

// AddRule registers pattern for method under endpoint without binding a
// handler. See Table.Register.
func (a *App) AddRule(method, pattern, endpoint string) (*Rule, error) {
	return a.table.Register(method, pattern, endpoint)
}

// SetHandler binds h to endpoint. It fails with ErrEndpointConflict when the
// endpoint already has a handler.
func (a *App) SetHandler(endpoint string, h HandlerFunc) error {
	if endpoint == "" {
		return errors.New("mux: empty endpoint")
	}
	if h == nil {
		return fmt.Errorf("mux: nil handler for endpoint %q", endpoint)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.handlers[endpoint]; exists {
		return fmt.Errorf("%w: %q", ErrEndpointConflict, endpoint)
	}
	a.handlers[endpoint] = h
	a.handlerCache.Delete(endpoint)

	return nil
}

// Route registers pattern under endpoint for each of methods (GET when none
// is given) and binds h to the endpoint. A nil h adds rules to an endpoint
// whose handler is bound elsewhere.
//
// The pattern and methods are validated before anything is registered, so a
// failing call leaves the application unchanged.
func (a *App) Route(pattern, endpoint string, h HandlerFunc, methods ...string) error {
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}

	if _, err := Compile(pattern); err != nil {
		return err
	}
	for _, method := range methods {
		if !isSupportedMethod(strings.ToUpper(method)) {
			return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
		}
	}

	if h != nil {
		if err := a.SetHandler(endpoint, h); err != nil {
			return err
		}
	}

	for _, method := range methods {
		if _, err := a.table.Register(method, pattern, endpoint); err != nil {
			return err
		}
	}

	return nil
}

// MustRoute is like Route but panics on error. It is intended for
// application setup.
func (a *App) MustRoute(pattern, endpoint string, h HandlerFunc, methods ...string) {
	if err := a.Route(pattern, endpoint, h, methods...); err != nil {
		panic(err)
	}
}

// Get registers h for GET requests to pattern under the endpoint "GET pattern".
func (a *App) Get(pattern string, h HandlerFunc) error {
	return a.handle(http.MethodGet, pattern, h)
}

// Post registers h for POST requests to pattern.
func (a *App) Post(pattern string, h HandlerFunc) error {
	return a.handle(http.MethodPost, pattern, h)
}

// Put registers h for PUT requests to pattern.
func (a *App) Put(pattern string, h HandlerFunc) error {
	return a.handle(http.MethodPut, pattern, h)
}

// Patch registers h for PATCH requests to pattern.
func (a *App) Patch(pattern string, h HandlerFunc) error {
	return a.handle(http.MethodPatch, pattern, h)
}

// Delete registers h for DELETE requests to pattern.
func (a *App) Delete(pattern string, h HandlerFunc) error {
	return a.handle(http.MethodDelete, pattern, h)
}

// Any registers h for requests of any method to pattern. Rules registered
// for the exact method take precedence.
func (a *App) Any(pattern string, h HandlerFunc) error {
	return a.handle(MethodAny, pattern, h)
}

func (a *App) handle(method, pattern string, h HandlerFunc) error {
	return a.Route(pattern, method+" "+pattern, h, method)
}

// Use appends middleware to the chain. The first middleware added is the
// outermost.
func (a *App) Use(mwf ...MiddlewareFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.middlewares = append(a.middlewares, mwf...)
	a.handlerCache.Clear()
}

// RegisterEncoder adds or replaces the encoder used for structured handler
// results when the client accepts mediaType.
func (a *App) RegisterEncoder(mediaType string, enc Encoder) error {
	if strings.TrimSpace(mediaType) == "" {
		return errors.New("mux: empty media type")
	}
	if enc == nil {
		return fmt.Errorf("mux: nil encoder for %q", mediaType)
	}
	a.encoders.register(mediaType, enc)
	return nil
}

// Handler returns the handler bound to endpoint.
func (a *App) Handler(endpoint string) (HandlerFunc, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h, ok := a.handlers[endpoint]
	return h, ok
}

// URLFor builds a URL for endpoint from values.
//
// The first rule of the endpoint whose placeholders all have a value is
// used; values that fill no placeholder are appended as a query string
// sorted by key. It fails with ErrNoRoute when no rule is registered for
// the endpoint.
//
//	app.URLFor("user", map[string]any{"id": 42, "tab": "posts"})
//	// "/users/42?tab=posts"
func (a *App) URLFor(endpoint string, values map[string]any) (string, error) {
	rules := a.table.Lookup(endpoint)
	if len(rules) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoRoute, endpoint)
	}

	rule := rules[0]
	for _, r := range rules {
		if r.canBuild(values) {
			rule = r
			break
		}
	}

	path, used, err := rule.build(values)
	if err != nil {
		return "", err
	}

	extra := make(map[string]any)
	for k, v := range values {
		if _, ok := used[k]; !ok {
			extra[k] = v
		}
	}
	if q := encodeQuery(extra); q != "" {
		path += "?" + q
	}

	return path, nil
}

// endpointHandler returns the middleware-wrapped handler for endpoint. An
// endpoint without a handler yields one that fails as a defect.
func (a *App) endpointHandler(endpoint string) HandlerFunc {
	if cached, ok := a.handlerCache.Load(endpoint); ok {
		return cached.(HandlerFunc)
	}

	// The read lock is held while storing so Use cannot clear the cache
	// between reading the middleware and caching the result.
	a.mu.RLock()
	defer a.mu.RUnlock()

	h, ok := a.handlers[endpoint]
	if !ok {
		return chain(missingHandler(endpoint), a.middlewares)
	}

	wrapped := chain(h, a.middlewares)
	a.handlerCache.Store(endpoint, wrapped)
	return wrapped
}

// wrap applies the middleware chain to a fallback handler.
func (a *App) wrap(h HandlerFunc) HandlerFunc {
	a.mu.RLock()
	mws := a.middlewares
	a.mu.RUnlock()

	return chain(h, mws)
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func missingHandler(endpoint string) HandlerFunc {
	return func(*Context) (any, error) {
		return nil, fmt.Errorf("mux: no handler bound to endpoint %q", endpoint)
	}
}
