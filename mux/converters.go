package mux

import (
	"regexp"
	"strconv"
	"strings"
)

// Specificity score per segment kind. Rules with a higher total are tried
// first during resolution.
const (
	// ScoreLiteral is the score for a static segment.
	ScoreLiteral = 2

	// ScoreTyped is the score for a string or int placeholder.
	ScoreTyped = 1

	// ScorePath is the score for a path placeholder.
	ScorePath = 0
)

// segmentKind identifies how a compiled segment matches a path segment.
type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentString
	segmentInt
	segmentPath
)

// varMatcher validates a single placeholder value.
// *regexp.Regexp satisfies this interface.
type varMatcher interface {
	MatchString(string) bool
	String() string
}

// converter validates and coerces the value bound to a placeholder.
type converter struct {
	kind    segmentKind
	score   int
	matcher varMatcher
	convert func(string) (any, bool)
}

// converters maps placeholder type names to their converters.
// Used in pattern segments: <type:name>.
var converters = func() map[string]converter {
	digits := regexp.MustCompile(`^[0-9]+$`)

	return map[string]converter{
		"string": {
			kind:  segmentString,
			score: ScoreTyped,
			convert: func(s string) (any, bool) {
				return s, s != ""
			},
		},
		"int": {
			kind:    segmentInt,
			score:   ScoreTyped,
			matcher: digits,
			convert: func(s string) (any, bool) {
				// Overflowing values do not match rather than fail.
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, false
				}
				return n, true
			},
		},
		"path": {
			kind:  segmentPath,
			score: ScorePath,
			convert: func(s string) (any, bool) {
				return s, true
			},
		},
	}
}()

// lookupConverter returns the converter registered under name.
func lookupConverter(name string) (converter, bool) {
	c, ok := converters[name]
	return c, ok
}

// convertValue validates s against the converter and returns the typed value.
func (c converter) convertValue(s string) (any, bool) {
	if c.matcher != nil && !c.matcher.MatchString(s) {
		return nil, false
	}
	return c.convert(s)
}

// typeName returns the placeholder type name for a segment kind.
func (k segmentKind) typeName() string {
	switch k {
	case segmentString:
		return "string"
	case segmentInt:
		return "int"
	case segmentPath:
		return "path"
	default:
		return "literal"
	}
}

// formatValue renders a bound value back into its path form for URL building.
func (k segmentKind) formatValue(v any) (string, bool) {
	switch k {
	case segmentInt:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), n >= 0
		case int64:
			return strconv.FormatInt(n, 10), n >= 0
		case uint:
			return strconv.FormatUint(uint64(n), 10), true
		case uint64:
			return strconv.FormatUint(n, 10), true
		case string:
			if _, err := strconv.Atoi(n); err != nil || strings.HasPrefix(n, "-") || strings.HasPrefix(n, "+") {
				return "", false
			}
			return n, true
		}
		return "", false
	case segmentString, segmentPath:
		switch s := v.(type) {
		case string:
			return s, k == segmentPath || s != ""
		case []string:
			if k != segmentPath {
				return "", false
			}
			return strings.Join(s, "/"), true
		case int:
			return strconv.Itoa(s), true
		case int64:
			return strconv.FormatInt(s, 10), true
		}
		return "", false
	}
	return "", false
}
