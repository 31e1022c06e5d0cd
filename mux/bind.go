package mux

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

var (
	// ErrEmptyBody is returned when binding a request without a body.
	ErrEmptyBody = errors.New("mux: request body is empty")

	// ErrTrailingData is returned when the body holds more than one value.
	ErrTrailingData = errors.New("mux: unexpected trailing data after the request value")

	// ErrUnsupportedBody is returned by Bind for a Content-Type it cannot
	// decode.
	ErrUnsupportedBody = errors.New("mux: unsupported request content type")
)

// BindError reports a request body that could not be decoded.
type BindError struct {
	// Format is "json" or "xml".
	Format string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("mux: bind %s: %v", e.Format, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

type valueDecoder interface {
	Decode(v any) error
}

// decodeOne decodes exactly one value from body.
func decodeOne(format string, body []byte, dec valueDecoder, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return &BindError{Format: format, Err: ErrEmptyBody}
	}

	if err := dec.Decode(v); err != nil {
		return &BindError{Format: format, Err: err}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &BindError{Format: format, Err: ErrTrailingData}
	}

	return nil
}

// BindJSON decodes the request body as a single JSON value into v. Unknown
// object fields are rejected unless allowUnknownFields is true. Errors are
// *BindError.
func (c *Context) BindJSON(v any, allowUnknownFields ...bool) error {
	dec := json.NewDecoder(bytes.NewReader(c.req.Body))
	if len(allowUnknownFields) == 0 || !allowUnknownFields[0] {
		dec.DisallowUnknownFields()
	}
	return decodeOne("json", c.req.Body, dec, v)
}

// BindXML decodes the request body as a single XML element into v. Errors
// are *BindError.
func (c *Context) BindXML(v any) error {
	return decodeOne("xml", c.req.Body, xml.NewDecoder(bytes.NewReader(c.req.Body)), v)
}

// Bind decodes the request body according to its Content-Type: JSON for
// application/json and any "+json" type, XML for application/xml, text/xml
// and any "+xml" type. Other types yield ErrUnsupportedBody.
func (c *Context) Bind(v any) error {
	mediaType, _, err := mime.ParseMediaType(c.HeaderValue("Content-Type"))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedBody, c.HeaderValue("Content-Type"))
	}

	switch {
	case mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json"):
		return c.BindJSON(v)
	case mediaType == contentTypeXML || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml"):
		return c.BindXML(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBody, mediaType)
	}
}
