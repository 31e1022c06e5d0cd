package mux

import (
	"errors"
	"fmt"
	"net/http"
)

// AbortError short-circuits request handling with a specific response.
//
// A handler returns it, possibly wrapped with %w from nested calls, and the
// dispatcher converts it directly into a Response without normalizing the
// handler's return value:
//
//	func show(c *mux.Context) (any, error) {
//	    if !allowed(c) {
//	        return nil, mux.Abort(http.StatusForbidden).WithBody("go away")
//	    }
//	    ...
//	}
//
// It is control flow, not a defect, and is never logged as a failure.
type AbortError struct {
	code    int
	body    []byte
	hasBody bool
	header  Header
}

// Abort returns an AbortError for the given status code. Without a body
// override the response body is the status text.
func Abort(code int) *AbortError {
	return &AbortError{code: code}
}

// WithBody returns a copy of e with the response body replaced by body.
func (e *AbortError) WithBody(body string) *AbortError {
	return e.WithBodyBytes([]byte(body))
}

// WithBodyBytes returns a copy of e with the response body replaced by body.
func (e *AbortError) WithBodyBytes(body []byte) *AbortError {
	c := e.clone()
	c.body = body
	c.hasBody = true
	return c
}

// WithHeader returns a copy of e with an additional response header field.
func (e *AbortError) WithHeader(name, value string) *AbortError {
	c := e.clone()
	c.header.Add(name, value)
	return c
}

// Code returns the status code of the response.
func (e *AbortError) Code() int {
	return e.code
}

// Body returns the body override and whether one was set.
func (e *AbortError) Body() ([]byte, bool) {
	return e.body, e.hasBody
}

// Header returns a copy of the header overrides.
func (e *AbortError) Header() Header {
	return e.header.Clone()
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.hasBody {
		return fmt.Sprintf("mux: abort with status %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("mux: abort with status %d", e.code)
}

// Response converts the abort into the response it requests. Without a body
// override the body is the status text, served as plain text.
func (e *AbortError) Response() *Response {
	resp := &Response{
		Status: e.code,
		Header: e.header.Clone(),
	}

	if e.hasBody {
		resp.Body = e.body
	} else {
		resp.Body = []byte(http.StatusText(e.code))
	}

	if len(resp.Body) > 0 && resp.Header.Get("Content-Type") == "" {
		resp.Header.Set("Content-Type", contentTypeText)
	}

	return resp
}

func (e *AbortError) clone() *AbortError {
	c := *e
	c.header = e.header.Clone()
	return &c
}

// AsAbort reports whether err's chain contains an AbortError and returns it.
func AsAbort(err error) (*AbortError, bool) {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort, true
	}
	return nil, false
}
