package muxhandlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitalvas/flacon/mux"
)

// ErrInvalidFrameOption is returned when SecurityHeadersConfig.FrameOption is
// not one of the valid values: "DENY", "SAMEORIGIN", or empty string.
var ErrInvalidFrameOption = errors.New("security headers: frame option must be DENY, SAMEORIGIN, or empty")

// ErrInvalidExtraHeader is returned when an ExtraHeaders field has an empty
// name.
var ErrInvalidExtraHeader = errors.New("security headers: extra header name must not be empty")

// SecurityHeadersConfig configures the Security Headers middleware behaviour.
type SecurityHeadersConfig struct {
	// DisableContentTypeNosniff disables the X-Content-Type-Options: nosniff
	// header. The header is set by default (when false).
	DisableContentTypeNosniff bool

	// FrameOption sets the X-Frame-Options header value, "DENY" or
	// "SAMEORIGIN". Defaults to "DENY".
	FrameOption string

	// ReferrerPolicy sets the Referrer-Policy header value.
	// Defaults to "strict-origin-when-cross-origin".
	ReferrerPolicy string

	// HSTSMaxAge sets the max-age directive for the Strict-Transport-Security
	// header in seconds. When zero, the header is not set.
	HSTSMaxAge int

	// HSTSIncludeSubDomains appends the includeSubDomains directive. Only
	// effective when HSTSMaxAge > 0.
	HSTSIncludeSubDomains bool

	// HSTSPreload appends the preload directive. Only effective when
	// HSTSMaxAge > 0.
	HSTSPreload bool

	// CrossOriginOpenerPolicy sets the Cross-Origin-Opener-Policy header.
	CrossOriginOpenerPolicy string

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	ContentSecurityPolicy string

	// PermissionsPolicy sets the Permissions-Policy header.
	PermissionsPolicy string

	// ExtraHeaders are appended after the headers above, e.g.
	// Cross-Origin-Resource-Policy.
	ExtraHeaders []mux.HeaderField

	// Overwrite replaces headers the handler already set. By default a
	// handler's own value wins.
	Overwrite bool
}

// fields returns the configured header fields in write order. Empty values
// are skipped.
func (cfg *SecurityHeadersConfig) fields() []mux.HeaderField {
	var hsts string
	if cfg.HSTSMaxAge > 0 {
		directives := []string{fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)}
		if cfg.HSTSIncludeSubDomains {
			directives = append(directives, "includeSubDomains")
		}
		if cfg.HSTSPreload {
			directives = append(directives, "preload")
		}
		hsts = strings.Join(directives, "; ")
	}

	var nosniff string
	if !cfg.DisableContentTypeNosniff {
		nosniff = "nosniff"
	}

	all := []mux.HeaderField{
		{Name: "X-Content-Type-Options", Value: nosniff},
		{Name: "X-Frame-Options", Value: cfg.FrameOption},
		{Name: "Referrer-Policy", Value: cfg.ReferrerPolicy},
		{Name: "Strict-Transport-Security", Value: hsts},
		{Name: "Cross-Origin-Opener-Policy", Value: cfg.CrossOriginOpenerPolicy},
		{Name: "Content-Security-Policy", Value: cfg.ContentSecurityPolicy},
		{Name: "Permissions-Policy", Value: cfg.PermissionsPolicy},
	}
	all = append(all, cfg.ExtraHeaders...)

	out := all[:0]
	for _, f := range all {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}

// SecurityHeadersMiddleware returns a middleware that adds common security
// headers to every response, fallbacks and aborts included. The field list
// is computed once; headers are written in a fixed order.
//
// It returns ErrInvalidFrameOption if FrameOption is set to a value other than
// "DENY", "SAMEORIGIN", or empty string, and ErrInvalidExtraHeader for an
// unnamed extra header.
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) (mux.MiddlewareFunc, error) {
	switch cfg.FrameOption {
	case "":
		cfg.FrameOption = "DENY"
	case "DENY", "SAMEORIGIN":
	default:
		return nil, ErrInvalidFrameOption
	}

	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = "strict-origin-when-cross-origin"
	}

	for _, f := range cfg.ExtraHeaders {
		if strings.TrimSpace(f.Name) == "" {
			return nil, ErrInvalidExtraHeader
		}
	}

	fields := cfg.fields()
	overwrite := cfg.Overwrite

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			resp := c.Respond(next)

			for _, f := range fields {
				if overwrite || !resp.Header.Has(f.Name) {
					resp.Header.Set(f.Name, f.Value)
				}
			}

			return resp, nil
		}
	}, nil
}
