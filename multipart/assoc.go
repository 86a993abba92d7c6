package multipart

import "strings"

// ParseAssociative parses bracket notation in a field name, e.g.
// "user[address][city]" into basename "user" and associations
// ["address", "city"]. The parse is total: on any malformed input it reports
// ok=false and the name is to be used unmodified.
//
// Grammar: a non-empty prefix containing no brackets, immediately followed by
// one or more "[...]" groups that run to the end of the name. An empty group
// ("field[]") is valid and yields an empty association. A nested '[' before
// its matching ']', an unmatched ']', an unterminated '[', or trailing text
// after the last group all invalidate the parse.
func ParseAssociative(name string) (basename string, associations []string, ok bool) {
	open := strings.IndexByte(name, '[')
	if open <= 0 {
		// No bracket group, or nothing before the first one.
		return "", nil, false
	}

	basename = name[:open]
	if strings.ContainsAny(basename, "]") {
		return "", nil, false
	}

	rest := name[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			// Trailing text between or after groups.
			return "", nil, false
		}
		closing := strings.IndexByte(rest[1:], ']')
		if closing < 0 {
			// Unterminated group.
			return "", nil, false
		}
		group := rest[1 : 1+closing]
		if strings.ContainsAny(group, "[") {
			// Nested open bracket before the matching close.
			return "", nil, false
		}
		associations = append(associations, group)
		rest = rest[closing+2:]
	}

	return basename, associations, true
}

// Associative returns a copy of the field enriched with the parsed bracket
// structure of its name. Fields whose names do not parse are returned
// unmodified. Aggregating enriched fields into nested structures is the
// caller's concern, typically via a query-string structuring library fed
// reconstructed name=value pairs.
func (f FieldPart) Associative() FieldPart {
	basename, associations, ok := ParseAssociative(f.Name)
	if !ok {
		return f
	}
	f.basename = basename
	f.associations = associations
	f.associative = true
	return f
}
