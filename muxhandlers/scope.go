package muxhandlers

import "github.com/vitalvas/flacon/mux"

// Scope restricts a middleware to some endpoints. The zero value matches
// every request, including the 404 and 405 fallbacks.
type Scope struct {
	// Endpoints, when non-empty, is the only set of endpoints the
	// middleware applies to. Fallbacks never match a non-empty list.
	Endpoints []string

	// Exclude lists endpoints the middleware never applies to.
	Exclude []string
}

type scopeMatcher struct {
	only    map[string]struct{}
	exclude map[string]struct{}
}

func toSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s Scope) matcher() scopeMatcher {
	return scopeMatcher{only: toSet(s.Endpoints), exclude: toSet(s.Exclude)}
}

// match reports whether the middleware applies to c.
func (m scopeMatcher) match(c *mux.Context) bool {
	if c.Rule() == nil {
		return m.only == nil
	}

	endpoint := c.Endpoint()
	if m.only != nil {
		if _, ok := m.only[endpoint]; !ok {
			return false
		}
	}

	_, excluded := m.exclude[endpoint]
	return !excluded
}
