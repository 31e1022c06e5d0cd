// Package mux implements the routing and dispatch core of a small web
// application framework: a pattern compiler, a route table, a dispatcher
// and the per-request context handlers run under.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics)
//   - RFC 3986 (URIs)
//   - RFC 7538 (308 Permanent Redirect)
//
// # Application
//
// Create an application and register handlers by endpoint:
//
//	app := mux.NewApp("blog")
//	app.MustRoute("/", "index", index)
//	app.MustRoute("/posts/<int:id>", "post", showPost, http.MethodGet, http.MethodHead)
//	http.ListenAndServe(":8080", app)
//
// An endpoint is the identifier a rule is bound to. Handlers are looked up by
// endpoint at invocation time, so rules and handlers may be registered
// separately with AddRule and SetHandler. Get, Post, Put, Patch, Delete and
// Any register a single rule under the endpoint "METHOD pattern".
//
// # Patterns
//
// A pattern starts with "/" and consists of "/"-separated segments. A
// segment is either a literal or a placeholder spanning the whole segment:
//
//	<name>       one non-empty segment, bound as string
//	<int:name>   one segment of ASCII digits, bound as int
//	<path:name>  the rest of the path, possibly empty; final segment only
//
// A trailing slash is significant: "/docs/" and "/docs" are different rules.
// Malformed patterns fail registration with *PatternError.
//
// # Rule Precedence
//
// Each rule gets a specificity score at compile time: 2 per literal segment,
// 1 per string or int placeholder and 0 for a path placeholder. Rules for the
// request method are tried by descending score; rules with equal scores keep
// registration order, so the first registered wins. HEAD requests fall back
// to GET rules, and rules registered with MethodAny are tried last.
//
// # Handlers
//
// A handler receives the request Context and returns a value to be
// normalized into a Response:
//
//	*Response, Response   used as is
//	StatusResult          the wrapped value, answered with the given status
//	string                text/plain; charset=utf-8
//	[]byte, io.Reader     content type detected from the body
//	nil                   200 with an empty body
//	anything else         encoded by the encoder negotiated from Accept
//
// JSON is the default encoder. XML, MessagePack and YAML are registered as
// well and RegisterEncoder adds more.
//
// # Aborting
//
// Returning an *AbortError, possibly wrapped, stops handling and answers with
// its status. The body defaults to the status text:
//
//	if !found {
//	    return nil, mux.Abort(http.StatusNotFound).WithBody("no such post")
//	}
//
// Any other error or a panic is a defect: it is logged through App.Logger,
// passed to App.ErrorHook and answered with 500 "Internal Server Error".
//
// # Error Handling
//
// NotFoundHandler is called when no rule matches the path and
// MethodNotAllowedHandler when rules match the path but not the method.
// Responses to the latter always carry an Allow header, per RFC 9110
// Section 15.5.6. OPTIONS requests are answered automatically with the
// allowed methods unless AutomaticOptions(false) is set.
//
// # Strict Slash
//
// StrictSlash(true) redirects a request whose path only matches with the
// trailing slash toggled. It uses 308 Permanent Redirect (RFC 7538) to
// preserve the original request method.
//
// # Middleware
//
// Middleware wraps every dispatch, including the 404 and 405 fallbacks:
//
//	app.Use(func(next mux.HandlerFunc) mux.HandlerFunc {
//	    return func(c *mux.Context) (any, error) {
//	        resp := c.Respond(next)
//	        resp.Header.Set("X-Endpoint", c.Endpoint())
//	        return resp, nil
//	    }
//	})
//
// # URL Building
//
// URLFor builds a path for an endpoint. Values that fill no placeholder are
// appended as a query string:
//
//	u, err := app.URLFor("post", map[string]any{"id": 7, "page": 2})
//	// "/posts/7?page=2"
//
// # Request Binding
//
// BindJSON and BindXML decode the request body into a Go value; Bind picks
// one of them from the Content-Type. BindJSON rejects unknown fields by
// default; pass true to allow them. Empty bodies and trailing data after the
// first value are errors, reported as *BindError.
//
//	var req CreatePostRequest
//	if err := c.Bind(&req); err != nil {
//	    return nil, mux.Abort(http.StatusBadRequest).WithBody(err.Error())
//	}
package mux
