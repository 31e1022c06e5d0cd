package mux

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"
)

// HeaderField is a single response header line.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered list of response header fields. Duplicate names are
// allowed; lookups are case-insensitive per RFC 9110 Section 5.1.
type Header []HeaderField

// Add appends a field, keeping any existing fields with the same name.
func (h *Header) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Set replaces all fields named name with a single field at the position of
// the first one, or appends it when absent.
func (h *Header) Set(name, value string) {
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
			continue
		}
		if !replaced {
			out = append(out, HeaderField{Name: name, Value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, HeaderField{Name: name, Value: value})
	}
	*h = out
}

// Get returns the value of the first field named name, or "".
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns the values of all fields named name in order.
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Has reports whether a field named name is present.
func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Del removes all fields named name.
func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	c := make(Header, len(h))
	copy(c, h)
	return c
}

// Response is the value handed back to the transport.
type Response struct {
	// Status is the HTTP status code. Zero means 200 OK.
	Status int

	// Header holds the response header fields in write order.
	Header Header

	// Body is the response payload.
	Body []byte
}

// NewResponse returns a response with the given status and body.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Body: body}
}

// Text returns a plain-text response.
func Text(status int, body string) *Response {
	resp := &Response{Status: status, Body: []byte(body)}
	resp.Header.Set("Content-Type", contentTypeText)
	return resp
}

// JSON encodes v as JSON and returns it as a response with the given status
// code. The Content-Type header is set to "application/json".
func JSON(status int, v any) (*Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	resp := &Response{Status: status, Body: buf.Bytes()}
	resp.Header.Set("Content-Type", contentTypeJSON)
	return resp, nil
}

// XML encodes v as XML and returns it as a response with the given status
// code. The Content-Type header is set to "application/xml".
func XML(status int, v any) (*Response, error) {
	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}

	resp := &Response{Status: status, Body: buf.Bytes()}
	resp.Header.Set("Content-Type", contentTypeXML)
	return resp, nil
}

// Redirect returns a redirect response to location. Use 308 Permanent
// Redirect (RFC 7538) or 307 to preserve the request method.
func Redirect(status int, location string) *Response {
	resp := &Response{Status: status}
	resp.Header.Set("Location", location)
	return resp
}

// StatusCode returns the effective status code.
func (r *Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Validate checks the response can be written by an HTTP/1.1 transport:
// the status must be within [100, 599] and every header field must be a
// valid token with a valid value per RFC 9110 Section 5.
func (r *Response) Validate() error {
	if code := r.StatusCode(); code < 100 || code > 599 {
		return fmt.Errorf("mux: invalid status code %d", code)
	}

	for _, f := range r.Header {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("mux: invalid header field name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("mux: invalid value for header field %q", f.Name)
		}
	}

	return nil
}

// Write writes the response to w: header fields in order, then the status
// line and the body.
func (r *Response) Write(w http.ResponseWriter) error {
	h := w.Header()
	for _, f := range r.Header {
		h.Add(f.Name, f.Value)
	}

	w.WriteHeader(r.StatusCode())

	if len(r.Body) == 0 {
		return nil
	}

	_, err := w.Write(r.Body)
	return err
}
