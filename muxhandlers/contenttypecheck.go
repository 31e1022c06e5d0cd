package muxhandlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/vitalvas/flacon/mux"
)

// ErrNoAllowedTypes is returned when ContentTypeCheckConfig.AllowedTypes is
// empty.
var ErrNoAllowedTypes = errors.New("content type check: at least one allowed content type is required")

// ErrInvalidAllowedType is returned for an allowed type that is not of the
// form "type/subtype".
var ErrInvalidAllowedType = errors.New("content type check: allowed type must be type/subtype")

// ContentTypeCheckConfig configures the Content-Type Check middleware behaviour.
type ContentTypeCheckConfig struct {
	// AllowedTypes lists the acceptable media types. Matching ignores case
	// and parameters. A subtype of "*" accepts any subtype of that type and
	// "*+json" accepts any structured suffix of it, e.g.
	// "application/*+json" matches "application/problem+json".
	AllowedTypes []string

	// Methods is the set of HTTP methods that require Content-Type
	// validation. When nil, defaults to POST, PUT, PATCH.
	Methods []string

	// AllowEmptyBody lets requests without a body through unchecked.
	AllowEmptyBody bool
}

var defaultCheckedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
}

type mediaRange struct {
	typ     string
	subtype string
}

func parseMediaRange(s string) (mediaRange, error) {
	typ, subtype, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "/")
	if !ok || typ == "" || subtype == "" || typ == "*" {
		return mediaRange{}, ErrInvalidAllowedType
	}
	return mediaRange{typ: typ, subtype: subtype}, nil
}

func (m mediaRange) matches(mediaType string) bool {
	typ, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || typ != m.typ {
		return false
	}

	switch {
	case m.subtype == "*":
		return true
	case strings.HasPrefix(m.subtype, "*+"):
		return strings.HasSuffix(subtype, m.subtype[1:])
	default:
		return subtype == m.subtype
	}
}

// ContentTypeCheckMiddleware returns a middleware that validates the
// Content-Type header on requests with matching methods. A missing,
// malformed or unlisted type aborts with 415 Unsupported Media Type and an
// Accept header naming the allowed types.
//
// It returns ErrNoAllowedTypes if AllowedTypes is empty.
func ContentTypeCheckMiddleware(cfg ContentTypeCheckConfig) (mux.MiddlewareFunc, error) {
	if len(cfg.AllowedTypes) == 0 {
		return nil, ErrNoAllowedTypes
	}

	ranges := make([]mediaRange, 0, len(cfg.AllowedTypes))
	names := make([]string, 0, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		r, err := parseMediaRange(t)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
		names = append(names, r.typ+"/"+r.subtype)
	}
	accept := strings.Join(names, ", ")

	methods := cfg.Methods
	if methods == nil {
		methods = defaultCheckedMethods
	}

	checked := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		checked[strings.ToUpper(m)] = struct{}{}
	}

	allowed := func(ct string) bool {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return false
		}
		for _, r := range ranges {
			if r.matches(mediaType) {
				return true
			}
		}
		return false
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			if _, ok := checked[c.Method()]; !ok {
				return next(c)
			}
			if cfg.AllowEmptyBody && len(c.Body()) == 0 {
				return next(c)
			}

			if !allowed(c.HeaderValue("Content-Type")) {
				return nil, mux.Abort(http.StatusUnsupportedMediaType).WithHeader("Accept", accept)
			}

			return next(c)
		}
	}, nil
}
