package muxhandlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vitalvas/flacon/mux"
)

var (
	// ErrNoCacheControlRules is returned when CacheControlConfig.Rules is empty.
	ErrNoCacheControlRules = errors.New("cache control: at least one rule is required")

	// ErrEmptyCacheControlRule is returned for a rule without a value or
	// without an endpoint and content type to match.
	ErrEmptyCacheControlRule = errors.New("cache control: rule needs a value and an endpoint or content type")
)

// CacheControlRule selects Cache-Control and Expires values for a response.
// When both Endpoint and ContentType are set, both must match.
type CacheControlRule struct {
	// Endpoint matches the endpoint of the dispatched rule exactly.
	Endpoint string

	// ContentType is a case-insensitive prefix of the response
	// Content-Type, e.g. "image/".
	ContentType string

	// Value is the Cache-Control header value. Required.
	Value string

	// Expires is added to the current time for the Expires header.
	// Zero yields the current time; negative omits the header.
	Expires time.Duration
}

// CacheControlConfig configures the CacheControl middleware behaviour.
type CacheControlConfig struct {
	// Rules are tried in order; the first match wins.
	Rules []CacheControlRule

	// DefaultValue and DefaultExpires apply when no rule matches. Nothing
	// is set for unmatched responses while DefaultValue is empty.
	DefaultValue   string
	DefaultExpires time.Duration

	// Scope selects the endpoints the middleware applies to.
	Scope Scope

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type cachePolicy struct {
	value   string
	expires time.Duration
}

func (p cachePolicy) apply(h *mux.Header, now time.Time) {
	if !h.Has("Cache-Control") {
		h.Set("Cache-Control", p.value)
	}
	if p.expires >= 0 && !h.Has("Expires") {
		h.Set("Expires", now.UTC().Add(p.expires).Format(http.TimeFormat))
	}
}

type cacheRule struct {
	endpoint    string
	contentType string
	policy      cachePolicy
}

func (r cacheRule) matches(endpoint, contentType string) bool {
	if r.endpoint != "" && r.endpoint != endpoint {
		return false
	}
	return strings.HasPrefix(contentType, r.contentType)
}

// CacheControlMiddleware returns a middleware that sets Cache-Control and
// Expires on successful responses. Responses with a status of 400 or above
// and headers the handler set itself are left alone.
//
// It returns ErrNoCacheControlRules if Rules is empty.
func CacheControlMiddleware(cfg CacheControlConfig) (mux.MiddlewareFunc, error) {
	if len(cfg.Rules) == 0 {
		return nil, ErrNoCacheControlRules
	}

	rules := make([]cacheRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.Value == "" || (r.Endpoint == "" && r.ContentType == "") {
			return nil, ErrEmptyCacheControlRule
		}
		rules = append(rules, cacheRule{
			endpoint:    r.Endpoint,
			contentType: strings.ToLower(r.ContentType),
			policy:      cachePolicy{value: r.Value, expires: r.Expires},
		})
	}

	fallback := cachePolicy{value: cfg.DefaultValue, expires: cfg.DefaultExpires}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	scope := cfg.Scope.matcher()

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			resp := c.Respond(next)
			if resp.StatusCode() >= http.StatusBadRequest || !scope.match(c) {
				return resp, nil
			}

			policy := fallback
			ct := strings.ToLower(resp.Header.Get("Content-Type"))
			for _, rule := range rules {
				if rule.matches(c.Endpoint(), ct) {
					policy = rule.policy
					break
				}
			}

			if policy.value != "" {
				policy.apply(&resp.Header, now())
			}
			return resp, nil
		}
	}, nil
}
