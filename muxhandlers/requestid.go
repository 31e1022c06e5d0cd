package muxhandlers

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/flacon/mux"
)

const (
	requestIDKey = "muxhandlers.request_id"

	defaultRequestIDHeader = "X-Request-ID"
	defaultRequestIDLength = 128
)

type requestIDContextKey struct{}

// RequestID returns the request ID stored by RequestIDMiddleware, or "".
func RequestID(c *mux.Context) string {
	v, _ := c.Get(requestIDKey)
	id, _ := v.(string)
	return id
}

// RequestIDFromContext returns the request ID carried by ctx, or "". Code
// below the handler that only sees c.Context() uses it.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// RequestIDConfig configures the Request ID middleware behaviour.
type RequestIDConfig struct {
	// HeaderName defaults to "X-Request-ID".
	HeaderName string

	// GenerateFunc returns a new ID. Defaults to GenerateUUIDv4. An empty
	// result leaves the request without an ID.
	GenerateFunc func(c *mux.Context) string

	// TrustIncoming reuses the ID of the incoming request header.
	TrustIncoming bool

	// MaxLength bounds trusted incoming IDs. Longer IDs, and IDs that are
	// not valid header values, are replaced by a generated one.
	// Defaults to 128.
	MaxLength int
}

// RequestIDMiddleware returns a middleware that assigns every request an ID.
// The ID is written to the request header, the context store, the Go
// context and the response header, fallbacks included.
func RequestIDMiddleware(cfg RequestIDConfig) mux.MiddlewareFunc {
	header := cfg.HeaderName
	if header == "" {
		header = defaultRequestIDHeader
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv4
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = defaultRequestIDLength
	}

	incoming := func(c *mux.Context) string {
		if !cfg.TrustIncoming {
			return ""
		}
		id := c.HeaderValue(header)
		if len(id) > maxLength || !httpguts.ValidHeaderFieldValue(id) {
			return ""
		}
		return id
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			id := incoming(c)
			if id == "" {
				id = generate(c)
			}
			if id == "" {
				return next(c)
			}

			c.Header().Set(header, id)
			c.Set(requestIDKey, id)
			c.SetContext(context.WithValue(c.Context(), requestIDContextKey{}, id))

			resp := c.Respond(next)
			resp.Header.Set(header, id)
			return resp, nil
		}
	}
}

// GenerateUUIDv4 returns a random UUID (RFC 9562 Section 5.4).
func GenerateUUIDv4(*mux.Context) string {
	return uuid.NewString()
}

// GenerateUUIDv7 returns a time-ordered UUID (RFC 9562 Section 5.7): IDs
// generated later sort after earlier ones.
func GenerateUUIDv7(*mux.Context) string {
	return uuid.Must(uuid.NewV7()).String()
}
