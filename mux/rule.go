package mux

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Rule is a compiled route pattern bound to an HTTP method and an endpoint.
// A Rule is immutable once registered.
type Rule struct {
	id       uint64
	method   string
	pattern  string
	endpoint string
	segments []segment
	varNames []string
	score    int
	// prefix counts the literal segments before the first placeholder.
	prefix int
}

// ID returns the registration sequence number of the rule. Rules registered
// earlier have lower IDs.
func (r *Rule) ID() uint64 {
	return r.id
}

// Method returns the HTTP method the rule was registered for, or MethodAny.
func (r *Rule) Method() string {
	return r.method
}

// Pattern returns the pattern the rule was compiled from.
func (r *Rule) Pattern() string {
	return r.pattern
}

// Endpoint returns the identifier of the handler bound to the rule.
func (r *Rule) Endpoint() string {
	return r.endpoint
}

// Score returns the specificity score computed at compile time.
func (r *Rule) Score() int {
	return r.score
}

// VarNames returns the placeholder names in pattern order.
func (r *Rule) VarNames() []string {
	if len(r.varNames) == 0 {
		return nil
	}
	names := make([]string, len(r.varNames))
	copy(names, r.varNames)
	return names
}

// String returns a human-readable description, e.g. "GET /users/<int:id> (user)".
func (r *Rule) String() string {
	return fmt.Sprintf("%s %s (%s)", r.method, r.pattern, r.endpoint)
}

// bind returns a copy of the compiled rule carrying registration metadata.
func (r *Rule) bind(id uint64, method, endpoint string) *Rule {
	bound := *r
	bound.id = id
	bound.method = method
	bound.endpoint = endpoint
	return &bound
}

// outranks reports whether r is tried before o: a higher score first, then
// the longer literal prefix.
func (r *Rule) outranks(o *Rule) bool {
	if r.score != o.score {
		return r.score > o.score
	}
	return r.prefix > o.prefix
}

// match attempts to match the segments of a request path. Each call returns
// a freshly allocated Vars so concurrent matches never share bindings.
func (r *Rule) match(parts []string) (Vars, bool) {
	var vars Vars

	for i, seg := range r.segments {
		if i >= len(parts) {
			return nil, false
		}

		if seg.kind == segmentPath {
			v, _ := seg.conv.convertValue(strings.Join(parts[i:], "/"))
			if vars == nil {
				vars = make(Vars, len(r.varNames))
			}
			vars[seg.name] = v
			return vars, true
		}

		if seg.kind == segmentLiteral {
			if parts[i] != seg.literal {
				return nil, false
			}
			continue
		}

		v, ok := seg.conv.convertValue(parts[i])
		if !ok {
			return nil, false
		}
		if vars == nil {
			vars = make(Vars, len(r.varNames))
		}
		vars[seg.name] = v
	}

	if len(parts) != len(r.segments) {
		return nil, false
	}

	return vars, true
}

// build renders the rule's path from the given values. It returns the path
// and the names of the values it consumed.
func (r *Rule) build(values map[string]any) (string, map[string]struct{}, error) {
	var b strings.Builder
	used := make(map[string]struct{}, len(r.varNames))

	for _, seg := range r.segments {
		b.WriteByte('/')

		if seg.kind == segmentLiteral {
			b.WriteString(seg.literal)
			continue
		}

		v, ok := values[seg.name]
		if !ok {
			return "", nil, fmt.Errorf("mux: missing value for variable %q of %s", seg.name, r.pattern)
		}

		s, ok := seg.kind.formatValue(v)
		if !ok {
			return "", nil, fmt.Errorf("mux: invalid %s value %v for variable %q", seg.kind.typeName(), v, seg.name)
		}

		if seg.kind == segmentPath {
			parts := strings.Split(s, "/")
			for i, p := range parts {
				parts[i] = url.PathEscape(p)
			}
			b.WriteString(strings.Join(parts, "/"))
		} else {
			b.WriteString(url.PathEscape(s))
		}

		used[seg.name] = struct{}{}
	}

	return b.String(), used, nil
}

// canBuild reports whether all placeholders of the rule have a value.
func (r *Rule) canBuild(values map[string]any) bool {
	for _, name := range r.varNames {
		if _, ok := values[name]; !ok {
			return false
		}
	}
	return true
}

// Vars holds the typed values bound to a rule's placeholders: int for int
// placeholders, string for string and path placeholders.
type Vars map[string]any

// Get returns the value bound to name and whether it exists.
func (v Vars) Get(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// String returns the value bound to name formatted as a string, or "" when
// absent.
func (v Vars) String(name string) string {
	switch val := v[name].(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// Int returns the int bound to name. The boolean is false when the variable
// is absent or not an int placeholder.
func (v Vars) Int(name string) (int, bool) {
	n, ok := v[name].(int)
	return n, ok
}
