package muxhandlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/vitalvas/flacon/mux"
)

var (
	// ErrInvalidCompressionLevel is returned when CompressionConfig.Level is
	// outside the valid compression level range.
	ErrInvalidCompressionLevel = errors.New("compression: invalid compression level")

	// ErrUnsupportedEncoding is returned for an encoding other than gzip or
	// deflate.
	ErrUnsupportedEncoding = errors.New("compression: unsupported encoding")
)

// CompressionConfig configures the Compression middleware behaviour.
type CompressionConfig struct {
	// Level applies to every encoding. Zero means flate.DefaultCompression.
	Level int

	// MinLength is the smallest body that gets compressed.
	MinLength int

	// Encodings lists the supported encodings by server preference, which
	// breaks ties between equal client qualities. Defaults to gzip, deflate.
	Encodings []string

	// Scope selects the endpoints whose responses are compressed.
	Scope Scope
}

type compressor interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// encoder compresses bodies for one content coding with pooled writers.
type encoder struct {
	name string
	pool sync.Pool
}

func newEncoder(name string, level int) (*encoder, error) {
	e := &encoder{name: name}

	switch name {
	case "gzip":
		e.pool.New = func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		}
	case "deflate":
		e.pool.New = func() any {
			w, _ := flate.NewWriter(io.Discard, level)
			return w
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}

	return e, nil
}

func (e *encoder) encode(body []byte) ([]byte, error) {
	w := e.pool.Get().(compressor)
	defer e.pool.Put(w)

	var buf bytes.Buffer
	buf.Grow(len(body) / 2)
	w.Reset(&buf)

	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// CompressionMiddleware returns a middleware that compresses buffered
// response bodies with the best encoding the client accepts. A response is
// sent as is when it is a HEAD, 204 or 304 reply, is shorter than MinLength,
// already has a Content-Encoding, has an inherently compressed content type,
// or would not shrink.
//
// It returns ErrInvalidCompressionLevel or ErrUnsupportedEncoding for an
// invalid configuration.
func CompressionMiddleware(cfg CompressionConfig) (mux.MiddlewareFunc, error) {
	level := cfg.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, ErrInvalidCompressionLevel
	}

	names := cfg.Encodings
	if len(names) == 0 {
		names = []string{"gzip", "deflate"}
	}

	encoders := make([]*encoder, 0, len(names))
	for _, name := range names {
		e, err := newEncoder(strings.ToLower(name), level)
		if err != nil {
			return nil, err
		}
		encoders = append(encoders, e)
	}

	scope := cfg.Scope.matcher()

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			resp := c.Respond(next)

			if !compressible(c, resp, cfg.MinLength) || !scope.match(c) {
				return resp, nil
			}

			addVary(&resp.Header, "Accept-Encoding")

			e := negotiateEncoding(c.HeaderValue("Accept-Encoding"), encoders)
			if e == nil {
				return resp, nil
			}

			body, err := e.encode(resp.Body)
			if err != nil || len(body) >= len(resp.Body) {
				return resp, nil
			}

			resp.Body = body
			resp.Header.Set("Content-Encoding", e.name)
			resp.Header.Del("Content-Length")
			return resp, nil
		}
	}, nil
}

func compressible(c *mux.Context, resp *mux.Response, minLength int) bool {
	switch {
	case c.Method() == http.MethodHead:
		return false
	case resp.StatusCode() == http.StatusNoContent || resp.StatusCode() == http.StatusNotModified:
		return false
	case len(resp.Body) == 0 || len(resp.Body) < minLength:
		return false
	case resp.Header.Has("Content-Encoding"):
		return false
	}
	return !isCompressedContentType(resp.Header.Get("Content-Type"))
}

// negotiateEncoding picks the encoder with the highest client quality.
// "*" covers encodings the header does not name, and ties go to the earlier
// encoder. It returns nil when nothing acceptable is supported.
func negotiateEncoding(header string, encoders []*encoder) *encoder {
	quality := make(map[string]float64)
	wildcard := -1.0

	for _, r := range mux.ParseAccept(header) {
		name := strings.ToLower(r.Value)
		if name == "*" {
			if wildcard < 0 {
				wildcard = r.Quality
			}
			continue
		}
		if _, seen := quality[name]; !seen {
			quality[name] = r.Quality
		}
	}

	var best *encoder
	bestQ := 0.0
	for _, e := range encoders {
		q, ok := quality[e.name]
		if !ok {
			q = wildcard
		}
		if q > bestQ {
			best, bestQ = e, q
		}
	}

	return best
}

var compressedContentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"font/woff",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-bzip2",
	"application/x-xz",
	"application/zstd",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
}

// isCompressedContentType reports whether ct is an inherently compressed
// format. SVG images are text and stay compressible.
func isCompressedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if strings.HasPrefix(ct, "image/svg+xml") {
		return false
	}

	for _, prefix := range compressedContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}

	return false
}
