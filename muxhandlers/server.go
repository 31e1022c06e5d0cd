package muxhandlers

import (
	"fmt"
	"os"

	"github.com/vitalvas/flacon/mux"
)

const defaultHostnameHeader = "X-Server-Hostname"

// ServerConfig configures the Server middleware behaviour.
type ServerConfig struct {
	// Hostname is reported as is when set.
	Hostname string

	// HostnameEnv lists environment variables checked in order when
	// Hostname is empty, e.g. ["POD_NAME", "HOSTNAME"]. The first
	// non-empty one wins; os.Hostname is the last resort.
	HostnameEnv []string

	// HostnameHeader names the hostname response header.
	// Defaults to "X-Server-Hostname".
	HostnameHeader string

	// AppHeader, when set, names a response header carrying the name of
	// the application serving the request.
	AppHeader string
}

// resolveHostname applies the Hostname, HostnameEnv, os.Hostname order.
func resolveHostname(cfg ServerConfig) (string, error) {
	if cfg.Hostname != "" {
		return cfg.Hostname, nil
	}

	for _, env := range cfg.HostnameEnv {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	h, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("server: resolve hostname: %w", err)
	}
	return h, nil
}

// ServerMiddleware returns a middleware that identifies the serving
// instance on every response. The hostname is resolved once.
func ServerMiddleware(cfg ServerConfig) (mux.MiddlewareFunc, error) {
	hostname, err := resolveHostname(cfg)
	if err != nil {
		return nil, err
	}

	header := cfg.HostnameHeader
	if header == "" {
		header = defaultHostnameHeader
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			resp := c.Respond(next)
			resp.Header.Set(header, hostname)
			if cfg.AppHeader != "" {
				resp.Header.Set(cfg.AppHeader, c.App().Name())
			}
			return resp, nil
		}
	}, nil
}
