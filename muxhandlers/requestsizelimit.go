package muxhandlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vitalvas/flacon/mux"
)

// ErrInvalidMaxSize is returned when a configured limit is not greater
// than zero.
var ErrInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// RequestSizeLimitConfig configures the Request Size Limit middleware behaviour.
type RequestSizeLimitConfig struct {
	// MaxBytes is the limit for every endpoint without an entry in
	// Endpoints. Zero leaves those endpoints unlimited.
	MaxBytes int64

	// Endpoints overrides MaxBytes per endpoint.
	Endpoints map[string]int64
}

// RequestSizeLimitMiddleware returns a middleware that answers requests whose
// body exceeds the limit of their endpoint with 413 Content Too Large
// (RFC 9110 Section 15.5.14). The abort body names the limit.
//
// The transport has already read the body at this point; App.MaxBodyBytes
// stops reading oversized bodies early and applies to every endpoint.
//
// It returns ErrInvalidMaxSize if no limit is configured or one is not
// greater than zero.
func RequestSizeLimitMiddleware(cfg RequestSizeLimitConfig) (mux.MiddlewareFunc, error) {
	if cfg.MaxBytes < 0 || (cfg.MaxBytes == 0 && len(cfg.Endpoints) == 0) {
		return nil, ErrInvalidMaxSize
	}

	limits := make(map[string]int64, len(cfg.Endpoints))
	for endpoint, n := range cfg.Endpoints {
		if n <= 0 {
			return nil, ErrInvalidMaxSize
		}
		limits[endpoint] = n
	}

	limitFor := func(c *mux.Context) int64 {
		if c.Rule() != nil {
			if n, ok := limits[c.Endpoint()]; ok {
				return n
			}
		}
		return cfg.MaxBytes
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			if limit := limitFor(c); limit > 0 && int64(len(c.Body())) > limit {
				return nil, mux.Abort(http.StatusRequestEntityTooLarge).
					WithBody("request body exceeds " + strconv.FormatInt(limit, 10) + " bytes")
			}

			return next(c)
		}
	}, nil
}
