package muxhandlers

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vitalvas/flacon/mux"
)

// ErrNoLogger is returned when AccessLogConfig.Logger is nil.
var ErrNoLogger = errors.New("access log: logger must not be nil")

// AccessLogConfig configures the Access Log middleware behaviour.
type AccessLogConfig struct {
	// Logger receives one entry per request. Required.
	Logger *zap.Logger

	// Message is the log message. Defaults to "request".
	Message string

	// SkipPaths lists request paths that are not logged, e.g. "/healthz".
	SkipPaths []string
}

// AccessLogMiddleware returns a middleware that logs every request at Info
// level once the response is known. Entries carry the method, path,
// endpoint, status, response size, duration and, when RequestIDMiddleware
// runs before it, the request ID. Requests answered by a fallback have an
// empty endpoint.
//
// It returns ErrNoLogger if Logger is nil.
func AccessLogMiddleware(cfg AccessLogConfig) (mux.MiddlewareFunc, error) {
	if cfg.Logger == nil {
		return nil, ErrNoLogger
	}

	logger := cfg.Logger
	message := cfg.Message
	if message == "" {
		message = "request"
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			if _, ok := skip[c.Path()]; ok {
				return next(c)
			}

			start := time.Now()
			resp := c.Respond(next)

			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("endpoint", c.Endpoint()),
				zap.Int("status", resp.StatusCode()),
				zap.Int("bytes", len(resp.Body)),
				zap.Duration("duration", time.Since(start)),
			}

			if id := RequestID(c); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			logger.Info(message, fields...)

			return resp, nil
		}
	}, nil
}
