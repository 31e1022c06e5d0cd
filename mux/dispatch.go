package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const internalServerErrorBody = "Internal Server Error"

// Request is a decoded inbound request as handed over by a transport.
type Request struct {
	// Method is the request method, e.g. "GET".
	Method string

	// Path is the request path. It must start with "/".
	Path string

	// Header holds the request header fields.
	Header http.Header

	// Query holds the query parameters; repeated keys keep all values.
	Query url.Values

	// Body is the raw request body.
	Body []byte
}

// StatusResult pairs a handler result with an explicit status code.
type StatusResult struct {
	Code int
	Body any
}

// Status returns a result that is normalized like body but answered with
// code:
//
//	return mux.Status(http.StatusCreated, user), nil
func Status(code int, body any) StatusResult {
	return StatusResult{Code: code, Body: body}
}

// Dispatch resolves req against the route table, runs the bound handler
// through the middleware chain and returns the normalized response.
//
// Dispatch never returns nil and never panics: routing misses become 404 or
// 405, aborts become the response they carry and any other failure becomes
// 500 "Internal Server Error".
func (a *App) Dispatch(ctx context.Context, req Request) (resp *Response) {
	req.Method = strings.ToUpper(req.Method)

	defer func() {
		if rec := recover(); rec != nil {
			a.logger().Error("dispatch failed",
				zap.String("app", a.name),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			resp = Text(http.StatusInternalServerError, internalServerErrorBody)
		}
	}()

	rule, vars, err := a.table.Resolve(req.Method, req.Path)
	if err == nil {
		c := newContext(ctx, a, req, rule, vars)
		return a.invoke(c, a.endpointHandler(rule.endpoint))
	}

	c := newContext(ctx, a, req, nil, nil)

	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		if req.Method == http.MethodOptions && a.automaticOptions.Load() {
			return a.invoke(c, a.wrap(optionsHandler(mna.Allowed)))
		}

		a.logger().Debug("method not allowed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Strings("allowed", mna.Allowed),
		)

		h := a.MethodNotAllowedHandler
		if h == nil {
			h = defaultMethodNotAllowedHandler
		}
		resp := a.invoke(c, a.wrap(h))
		if !resp.Header.Has("Allow") {
			resp.Header.Set("Allow", strings.Join(mna.Allowed, ", "))
		}
		return resp
	}

	if a.strictSlash.Load() {
		if alt, ok := toggleSlash(req.Path); ok {
			if _, _, altErr := a.table.Resolve(req.Method, alt); altErr == nil {
				return a.invoke(c, a.wrap(redirectHandler(alt, req.Query)))
			}
		}
	}

	a.logger().Debug("route not found",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)

	h := a.NotFoundHandler
	if h == nil {
		h = defaultNotFoundHandler
	}
	return a.invoke(c, a.wrap(h))
}

// Respond runs h and returns its result as the dispatcher would answer it:
// aborts, errors and panics are converted and the value is normalized.
// Middleware that needs the final status or body calls it on next:
//
//	func(next mux.HandlerFunc) mux.HandlerFunc {
//	    return func(c *mux.Context) (any, error) {
//	        resp := c.Respond(next)
//	        resp.Header.Set("X-Status", strconv.Itoa(resp.StatusCode()))
//	        return resp, nil
//	    }
//	}
func (c *Context) Respond(h HandlerFunc) *Response {
	return c.app.invoke(c, h)
}

// invoke runs h and converts its outcome into a valid response.
func (a *App) invoke(c *Context, h HandlerFunc) (resp *Response) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}

		if err, ok := rec.(error); ok {
			if abort, ok := AsAbort(err); ok {
				resp = a.abortResponse(c, abort)
				return
			}
		}

		resp = a.defect(c, fmt.Errorf("mux: handler panic: %v", rec), debug.Stack())
	}()

	v, err := h(c)
	if err != nil {
		if abort, ok := AsAbort(err); ok {
			return a.abortResponse(c, abort)
		}
		return a.defect(c, err, nil)
	}

	resp, err = a.normalize(c, v, 0)
	if err != nil {
		return a.defect(c, err, nil)
	}

	if err := resp.Validate(); err != nil {
		return a.defect(c, err, nil)
	}

	return resp
}

// abortResponse converts an abort into its response. Aborts with a status
// outside [100, 599] are defects.
func (a *App) abortResponse(c *Context, abort *AbortError) *Response {
	if abort.Code() < 100 || abort.Code() > 599 {
		return a.defect(c, fmt.Errorf("mux: abort with invalid status %d", abort.Code()), nil)
	}

	resp := abort.Response()
	if err := resp.Validate(); err != nil {
		return a.defect(c, err, nil)
	}

	a.logger().Debug("request aborted",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("endpoint", c.Endpoint()),
		zap.Int("status", abort.Code()),
	)

	return resp
}

// defect logs err and returns the generic 500 response. The detail never
// reaches the client.
func (a *App) defect(c *Context, err error, stack []byte) *Response {
	fields := []zap.Field{
		zap.String("app", a.name),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("endpoint", c.Endpoint()),
		zap.Error(err),
	}
	if stack != nil {
		fields = append(fields, zap.ByteString("stack", stack))
	}
	a.logger().Error("handler failed", fields...)

	if a.ErrorHook != nil {
		a.ErrorHook(c, err)
	}

	return Text(http.StatusInternalServerError, internalServerErrorBody)
}

// normalize converts a handler result into a response. A non-zero code
// overrides the status of the result.
func (a *App) normalize(c *Context, v any, code int) (*Response, error) {
	var resp *Response

	switch r := v.(type) {
	case nil:
		resp = &Response{}
	case *Response:
		if r == nil {
			resp = &Response{}
			break
		}
		cp := *r
		cp.Header = r.Header.Clone()
		resp = &cp
	case Response:
		r.Header = r.Header.Clone()
		resp = &r
	case StatusResult:
		if code == 0 {
			code = r.Code
		}
		return a.normalize(c, r.Body, code)
	case string:
		resp = Text(http.StatusOK, r)
	case []byte:
		resp = sniffed(r)
	case io.Reader:
		body, err := io.ReadAll(r)
		if closer, ok := r.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("mux: read handler result: %w", err)
		}
		resp = sniffed(body)
	default:
		mediaType, body, err := a.encoders.encode(c.HeaderValue("Accept"), v)
		if err != nil {
			return nil, fmt.Errorf("mux: encode %T: %w", v, err)
		}
		resp = &Response{Body: body}
		resp.Header.Set("Content-Type", mediaType)
	}

	if code != 0 {
		resp.Status = code
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}

	return resp, nil
}

// sniffed returns a 200 response with the content type detected from body.
func sniffed(body []byte) *Response {
	resp := &Response{Status: http.StatusOK, Body: body}
	if len(body) > 0 {
		resp.Header.Set("Content-Type", http.DetectContentType(body))
	}
	return resp
}

func defaultNotFoundHandler(*Context) (any, error) {
	return Text(http.StatusNotFound, "404 Not Found"), nil
}

func defaultMethodNotAllowedHandler(*Context) (any, error) {
	return Text(http.StatusMethodNotAllowed, "405 Method Not Allowed"), nil
}

// optionsHandler answers an OPTIONS request with the allowed methods.
func optionsHandler(allowed []string) HandlerFunc {
	methods := make([]string, 0, len(allowed)+1)
	methods = append(methods, allowed...)
	if !slices.Contains(methods, http.MethodOptions) {
		methods = append(methods, http.MethodOptions)
	}
	sort.Strings(methods)
	allow := strings.Join(methods, ", ")

	return func(*Context) (any, error) {
		resp := &Response{Status: http.StatusOK}
		resp.Header.Set("Allow", allow)
		return resp, nil
	}
}

// redirectHandler redirects to path with 308 Permanent Redirect, which
// preserves the request method (RFC 7538 Section 3).
func redirectHandler(path string, query url.Values) HandlerFunc {
	location := path
	if len(query) > 0 {
		location += "?" + query.Encode()
	}

	return func(*Context) (any, error) {
		return Redirect(http.StatusPermanentRedirect, location), nil
	}
}
