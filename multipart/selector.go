package multipart

import "strings"

// PrefixMarker designates a "starts-with" pattern. A pattern string beginning
// with the marker matches every field name that starts with the remainder,
// e.g. "^meta." matches "meta.color" and "meta.size". Matching is
// case-sensitive. File field name matching is exact-only and never applies
// the marker.
const PrefixMarker = "^"

type selectorKind int

const (
	selectAll selectorKind = iota
	selectExact
	selectPrefix
)

// Selector is a tagged field matcher constructed once per call site instead
// of re-interpreting pattern strings on every invocation. The zero value
// matches everything and requires nothing.
type Selector struct {
	kind     selectorKind
	value    string
	optional bool
}

// All matches every field name and requires nothing.
func All() Selector {
	return Selector{kind: selectAll, optional: true}
}

// Exact matches one field name exactly. The selector is required unless
// Optional is applied.
func Exact(name string) Selector {
	return Selector{kind: selectExact, value: name}
}

// Prefix matches every field name starting with prefix. The selector is
// required unless Optional is applied.
func Prefix(prefix string) Selector {
	return Selector{kind: selectPrefix, value: prefix}
}

// Optional returns a copy of the selector whose presence is not validated at
// stream completion.
func (s Selector) Optional() Selector {
	s.optional = true
	return s
}

// Required reports whether the selector must match at least once before the
// stream completes.
func (s Selector) Required() bool {
	return !s.optional && s.kind != selectAll
}

// Matches reports whether the selector matches the given field name.
func (s Selector) Matches(name string) bool {
	switch s.kind {
	case selectExact:
		return name == s.value
	case selectPrefix:
		return strings.HasPrefix(name, s.value)
	default:
		return true
	}
}

// String renders the selector back into its pattern form, used in
// missing-field error messages.
func (s Selector) String() string {
	if s.kind == selectPrefix {
		return PrefixMarker + s.value
	}
	return s.value
}

// ParsePattern interprets a pattern string: a leading PrefixMarker yields a
// prefix selector, anything else an exact one.
func ParsePattern(pattern string) Selector {
	if rest, ok := strings.CutPrefix(pattern, PrefixMarker); ok {
		return Prefix(rest)
	}
	return Exact(pattern)
}

// ParsePatterns maps ParsePattern over a pattern list.
func ParsePatterns(patterns ...string) []Selector {
	out := make([]Selector, len(patterns))
	for i, p := range patterns {
		out[i] = ParsePattern(p)
	}
	return out
}
