package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/flacon/mux"
)

var (
	// ErrWildcardCredentials is returned when AllowedOrigins contains "*" and
	// AllowCredentials is true. Use AllowOriginFunc for dynamic origin checks
	// with credentials.
	ErrWildcardCredentials = errors.New("cors: wildcard origin \"*\" cannot be used with AllowCredentials")

	// ErrInvalidOriginPattern is returned for an origin pattern with more
	// than one "*".
	ErrInvalidOriginPattern = errors.New("cors: origin pattern has more than one wildcard")
)

// CORSConfig configures the CORS middleware behaviour.
//
// References:
//   - CORS protocol: https://fetch.spec.whatwg.org/#http-cors-protocol
//   - Web Origin:    https://www.rfc-editor.org/rfc/rfc6454
type CORSConfig struct {
	// AllowedOrigins holds exact origins, "*", or patterns with a single
	// wildcard such as "https://*.example.com". Matching ignores case.
	AllowedOrigins []string

	// AllowOriginFunc is consulted for origins AllowedOrigins rejects.
	AllowOriginFunc func(origin string) bool

	// AllowedMethods overrides the advertised methods. When empty they are
	// read from the route table for the request path, so a preflight
	// answers with exactly the methods the path is routed for.
	AllowedMethods []string

	// AllowedHeaders lists the request headers a client may send. When
	// empty, or when it contains "*", the preflight's
	// Access-Control-Request-Headers are reflected.
	AllowedHeaders []string

	// ExposeHeaders lists the response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials sends Access-Control-Allow-Credentials: true.
	AllowCredentials bool

	// MaxAge is how long a preflight may be cached, sent in whole seconds.
	// Negative sends 0; zero omits the header.
	MaxAge time.Duration

	// OptionsStatusCode is the preflight status. Defaults to 204.
	OptionsStatusCode int

	// OptionsPassthrough lets the preflight reach the handler chain
	// (including the automatic OPTIONS reply) before CORS headers are added.
	OptionsPassthrough bool

	// AllowPrivateNetwork answers Private Network Access preflights.
	// See https://wicg.github.io/private-network-access/
	AllowPrivateNetwork bool

	// Scope selects the endpoints that take part in CORS. Preflights
	// resolve no rule, so a non-empty Scope.Endpoints disables them.
	Scope Scope
}

// originMatcher checks lowercased origins against the configured list.
type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	patterns [][2]string
	fn       func(string) bool
}

func newOriginMatcher(origins []string, fn func(string) bool) (*originMatcher, error) {
	m := &originMatcher{exact: make(map[string]struct{}), fn: fn}

	for _, o := range origins {
		o = strings.ToLower(o)

		switch n := strings.Count(o, "*"); {
		case o == "*":
			m.any = true
		case n == 0:
			m.exact[o] = struct{}{}
		case n == 1:
			prefix, suffix, _ := strings.Cut(o, "*")
			m.patterns = append(m.patterns, [2]string{prefix, suffix})
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidOriginPattern, o)
		}
	}

	return m, nil
}

func (m *originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}

	lower := strings.ToLower(origin)
	if _, ok := m.exact[lower]; ok {
		return true
	}
	for _, p := range m.patterns {
		if len(lower) > len(p[0])+len(p[1]) && strings.HasPrefix(lower, p[0]) && strings.HasSuffix(lower, p[1]) {
			return true
		}
	}

	return m.fn != nil && m.fn(origin)
}

// varies reports whether the response depends on the Origin header.
func (m *originMatcher) varies() bool {
	return !m.any && (len(m.exact) > 0 || len(m.patterns) > 0 || m.fn != nil)
}

type corsPolicy struct {
	cfg             CORSConfig
	origins         *originMatcher
	scope           scopeMatcher
	reflectHeaders  bool
	allowHeaders    string
	exposeHeaders   string
	maxAge          string
	preflightStatus int
}

func addVary(h *mux.Header, name string) {
	for _, v := range h.Values("Vary") {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), name) {
				return
			}
		}
	}
	h.Add("Vary", name)
}

func (p *corsPolicy) setOrigin(h *mux.Header, origin string) {
	if p.origins.any && !p.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		addVary(h, "Origin")
	}

	if p.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

func (p *corsPolicy) methods(c *mux.Context) []string {
	if len(p.cfg.AllowedMethods) > 0 {
		return p.cfg.AllowedMethods
	}
	return c.App().Table().AllowedMethods(c.Path())
}

func (p *corsPolicy) preflight(c *mux.Context, next mux.HandlerFunc, origin string, methods []string) *mux.Response {
	var resp *mux.Response
	if p.cfg.OptionsPassthrough {
		resp = c.Respond(next)
	} else {
		resp = mux.NewResponse(p.preflightStatus, nil)
	}

	h := &resp.Header
	p.setOrigin(h, origin)
	h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))

	if requested := c.HeaderValue("Access-Control-Request-Headers"); p.reflectHeaders && requested != "" {
		h.Set("Access-Control-Allow-Headers", requested)
	} else if !p.reflectHeaders {
		h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	}

	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}

	if p.cfg.AllowPrivateNetwork && c.HeaderValue("Access-Control-Request-Private-Network") == "true" {
		h.Set("Access-Control-Allow-Private-Network", "true")
		addVary(h, "Access-Control-Request-Private-Network")
	}

	addVary(h, "Access-Control-Request-Method")
	addVary(h, "Access-Control-Request-Headers")
	return resp
}

// CORSMiddleware returns a middleware that implements the CORS protocol
// (Fetch Standard). Preflights are answered before the automatic OPTIONS
// reply or the 405 fallback runs; preflights for paths without any rule
// fall through to the 404 handler. Requests from disallowed origins are
// served without CORS headers.
//
// It returns ErrWildcardCredentials or ErrInvalidOriginPattern for an
// invalid configuration.
func CORSMiddleware(cfg CORSConfig) (mux.MiddlewareFunc, error) {
	origins, err := newOriginMatcher(cfg.AllowedOrigins, cfg.AllowOriginFunc)
	if err != nil {
		return nil, err
	}
	if origins.any && cfg.AllowCredentials {
		return nil, ErrWildcardCredentials
	}

	p := &corsPolicy{
		cfg:             cfg,
		origins:         origins,
		scope:           cfg.Scope.matcher(),
		reflectHeaders:  len(cfg.AllowedHeaders) == 0 || slices.Contains(cfg.AllowedHeaders, "*"),
		allowHeaders:    strings.Join(cfg.AllowedHeaders, ", "),
		exposeHeaders:   strings.Join(cfg.ExposeHeaders, ", "),
		preflightStatus: cfg.OptionsStatusCode,
	}
	if p.preflightStatus == 0 {
		p.preflightStatus = http.StatusNoContent
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.FormatInt(int64(cfg.MaxAge/time.Second), 10)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			origin := c.HeaderValue("Origin")

			if origin == "" || !p.scope.match(c) {
				resp := c.Respond(next)
				if p.origins.varies() {
					addVary(&resp.Header, "Origin")
				}
				return resp, nil
			}

			if !p.origins.allows(origin) {
				return next(c)
			}

			methods := p.methods(c)
			routed := len(c.App().Table().AllowedMethods(c.Path())) > 0

			if routed && c.Method() == http.MethodOptions && c.HeaderValue("Access-Control-Request-Method") != "" {
				return p.preflight(c, next, origin, methods), nil
			}

			resp := c.Respond(next)
			p.setOrigin(&resp.Header, origin)
			if p.exposeHeaders != "" {
				resp.Header.Set("Access-Control-Expose-Headers", p.exposeHeaders)
			}

			return resp, nil
		}
	}, nil
}
