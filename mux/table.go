package mux

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
)

// MethodAny registers a rule that matches every request method. ANY rules are
// tried after all rules registered for the exact request method.
const MethodAny = "ANY"

// supportedMethods lists the methods rules can be registered for, besides
// MethodAny, in the order used for listings.
var supportedMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost,
	http.MethodPut, http.MethodPatch, http.MethodDelete,
	http.MethodOptions,
}

// Table stores compiled rules grouped by method and resolves request paths
// against them.
//
// Per method, rules are kept sorted by descending specificity score; rules
// with equal scores keep their registration order, so the first registered
// wins.
//
// Registration takes a writer lock and resolution a reader lock, so rules may
// be added while requests are being served.
type Table struct {
	mu        sync.RWMutex
	rules     map[string][]*Rule
	endpoints map[string][]*Rule
	seq       uint64
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{
		rules:     make(map[string][]*Rule),
		endpoints: make(map[string][]*Rule),
	}
}

// Register compiles pattern and adds it as a rule for method, bound to
// endpoint. It fails with *PatternError for malformed patterns and
// ErrInvalidMethod for unsupported methods.
func (t *Table) Register(method, pattern, endpoint string) (*Rule, error) {
	method = strings.ToUpper(method)
	if !isSupportedMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	if endpoint == "" {
		return nil, fmt.Errorf("mux: empty endpoint for %s %s", method, pattern)
	}

	compiled, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	rule := compiled.bind(t.seq, method, endpoint)

	rules := append(t.rules[method], rule)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].outranks(rules[j])
	})
	t.rules[method] = rules
	t.endpoints[endpoint] = append(t.endpoints[endpoint], rule)

	return rule, nil
}

// Resolve finds the rule matching method and path and returns it with the
// bound variables.
//
// Rules registered for the exact method are tried first, then GET rules for
// HEAD requests, then ANY rules. When no rule matches but rules for other
// methods match the path, Resolve fails with *MethodNotAllowedError;
// otherwise it fails with *NotFoundError.
func (t *Table) Resolve(method, path string) (*Rule, Vars, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, nil, &NotFoundError{Method: method, Path: path}
	}

	parts := splitPath(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if rule, vars, ok := matchFirst(t.rules[method], parts); ok {
		return rule, vars, nil
	}

	if method == http.MethodHead {
		if rule, vars, ok := matchFirst(t.rules[http.MethodGet], parts); ok {
			return rule, vars, nil
		}
	}

	if method != MethodAny {
		if rule, vars, ok := matchFirst(t.rules[MethodAny], parts); ok {
			return rule, vars, nil
		}
	}

	if allowed := t.allowedLocked(parts); len(allowed) > 0 {
		return nil, nil, &MethodNotAllowedError{Method: method, Path: path, Allowed: allowed}
	}

	return nil, nil, &NotFoundError{Method: method, Path: path}
}

// AllowedMethods returns the sorted list of methods with a rule matching
// path. A matching ANY rule allows every supported method.
func (t *Table) AllowedMethods(path string) []string {
	if !strings.HasPrefix(path, "/") {
		return nil
	}

	parts := splitPath(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, _, ok := matchFirst(t.rules[MethodAny], parts); ok {
		all := make([]string, len(supportedMethods))
		copy(all, supportedMethods)
		sort.Strings(all)
		return all
	}

	return t.allowedLocked(parts)
}

// allowedLocked collects the methods whose rules match parts. GET implies
// HEAD. The caller must hold the lock.
func (t *Table) allowedLocked(parts []string) []string {
	var allowed []string
	for _, method := range supportedMethods {
		if _, _, ok := matchFirst(t.rules[method], parts); ok {
			allowed = append(allowed, method)
		}
	}

	if slices.Contains(allowed, http.MethodGet) && !slices.Contains(allowed, http.MethodHead) {
		allowed = append(allowed, http.MethodHead)
	}

	sort.Strings(allowed)
	return allowed
}

// Rules returns a snapshot of all rules in resolution order: grouped by
// method (ANY last), each group ordered by priority.
func (t *Table) Rules() []*Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Rule
	for _, method := range append(supportedMethods[:len(supportedMethods):len(supportedMethods)], MethodAny) {
		out = append(out, t.rules[method]...)
	}
	return out
}

// Lookup returns the rules bound to endpoint in registration order.
func (t *Table) Lookup(endpoint string) []*Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rules := t.endpoints[endpoint]
	if len(rules) == 0 {
		return nil
	}
	out := make([]*Rule, len(rules))
	copy(out, rules)
	return out
}

// Len returns the number of registered rules.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rules := range t.rules {
		n += len(rules)
	}
	return n
}

// matchFirst returns the first rule in rules that matches parts.
func matchFirst(rules []*Rule, parts []string) (*Rule, Vars, bool) {
	for _, rule := range rules {
		if vars, ok := rule.match(parts); ok {
			return rule, vars, true
		}
	}
	return nil, nil, false
}

// isSupportedMethod reports whether rules can be registered for method.
func isSupportedMethod(method string) bool {
	return method == MethodAny || slices.Contains(supportedMethods, method)
}
