package mux

import (
	"net/url"
	"path"
	"strings"
)

// cleanPath removes empty and dot segments from p (RFC 3986 Section 5.2.4)
// and makes it absolute. A trailing slash survives.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}

	cleaned := path.Clean("/" + p)
	if cleaned != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	return cleaned
}

// toggleSlash returns the other spelling of p: with its trailing slash when
// p has none and without it otherwise. The root path has none.
func toggleSlash(p string) (string, bool) {
	switch {
	case p == "" || p == "/":
		return "", false
	case strings.HasSuffix(p, "/"):
		return p[:len(p)-1], true
	default:
		return p + "/", true
	}
}

// encodeQuery formats the URL values that no placeholder consumed. Keys come
// out sorted.
func encodeQuery(values map[string]any) string {
	q := make(url.Values, len(values))
	for k, val := range values {
		if list, ok := val.([]string); ok {
			q[k] = append(q[k], list...)
			continue
		}
		q.Set(k, Vars{k: val}.String(k))
	}
	return q.Encode()
}
