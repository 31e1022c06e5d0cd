package mux

import (
	"fmt"
	"regexp"
	"strings"
)

// varNamePattern restricts placeholder names to identifiers.
var varNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// segment is one compiled component of a route pattern: either a literal or
// a typed placeholder.
type segment struct {
	kind    segmentKind
	literal string
	name    string
	conv    converter
}

// score returns the specificity contribution of the segment.
func (s segment) score() int {
	if s.kind == segmentLiteral {
		return ScoreLiteral
	}
	return s.conv.score
}

// String returns the segment in pattern syntax.
func (s segment) String() string {
	switch s.kind {
	case segmentLiteral:
		return s.literal
	case segmentString:
		return "<" + s.name + ">"
	default:
		return fmt.Sprintf("<%s:%s>", s.kind.typeName(), s.name)
	}
}

// Compile parses a route pattern into a Rule that has no method or endpoint
// bound yet.
//
// Patterns start with "/" and consist of "/"-separated segments. A segment is
// either a literal or a placeholder spanning the whole segment:
//
//	<name>       string placeholder, matches one non-empty segment
//	<int:name>   non-negative integer, bound as int
//	<path:name>  the remainder of the path (possibly empty), final segment only
//
// A trailing "/" is significant: "/docs/" and "/docs" are different rules.
// Compile fails with *PatternError on malformed input.
func Compile(pattern string) (*Rule, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, patternErrorf(pattern, "must start with %q", "/")
	}

	parts := splitPath(pattern)
	r := &Rule{
		pattern:  pattern,
		segments: make([]segment, 0, len(parts)),
	}

	seen := make(map[string]struct{})
	for i, part := range parts {
		last := i == len(parts)-1
		if part == "" && !last {
			return nil, patternErrorf(pattern, "empty segment at position %d", i+1)
		}

		seg, err := parseSegment(pattern, part)
		if err != nil {
			return nil, err
		}

		if seg.kind != segmentLiteral {
			if seg.kind == segmentPath && !last {
				return nil, patternErrorf(pattern, "path variable %q must be the final segment", seg.name)
			}
			if _, dup := seen[seg.name]; dup {
				return nil, patternErrorf(pattern, "duplicated variable %q", seg.name)
			}
			seen[seg.name] = struct{}{}
			r.varNames = append(r.varNames, seg.name)
		}

		if seg.kind == segmentLiteral && len(r.varNames) == 0 {
			r.prefix++
		}

		r.score += seg.score()
		r.segments = append(r.segments, seg)
	}

	return r, nil
}

// parseSegment compiles a single pattern segment.
func parseSegment(pattern, part string) (segment, error) {
	if len(part) >= 2 && part[0] == '<' && part[len(part)-1] == '>' {
		inner := part[1 : len(part)-1]
		if strings.ContainsAny(inner, "<>") {
			return segment{}, patternErrorf(pattern, "malformed placeholder %q", part)
		}

		typ, name := "string", inner
		if i := strings.IndexByte(inner, ':'); i >= 0 {
			typ, name = inner[:i], inner[i+1:]
			if typ == "" {
				return segment{}, patternErrorf(pattern, "missing type in %q", part)
			}
		}

		if !varNamePattern.MatchString(name) {
			return segment{}, patternErrorf(pattern, "invalid variable name in %q", part)
		}

		conv, ok := lookupConverter(typ)
		if !ok {
			return segment{}, patternErrorf(pattern, "unknown variable type %q in %q", typ, part)
		}

		return segment{kind: conv.kind, name: name, conv: conv}, nil
	}

	if strings.ContainsAny(part, "<>") {
		return segment{}, patternErrorf(pattern, "placeholder %q must span a whole segment", part)
	}

	return segment{kind: segmentLiteral, literal: part}, nil
}

// splitPath splits an absolute path into its segments. The root path yields a
// single empty segment and a trailing slash yields a trailing empty segment.
func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
