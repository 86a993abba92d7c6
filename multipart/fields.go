package multipart

import (
	"context"

	"github.com/partstream/partstream/stream"
)

// FilterFields passes through fields matching any of the patterns. A pattern
// is an exact name, or a starts-with prefix when it begins with
// PrefixMarker. Non-matching fields are dropped; unlike file parts they are
// fully materialized and need no draining.
func FilterFields(ctx context.Context, in stream.Source[FieldPart], patterns ...string) stream.Source[FieldPart] {
	return SelectFields(ctx, in, ParsePatterns(patterns...)...)
}

// SelectFields passes through fields matching any of the selectors and drops
// the rest. It honors selector semantics directly, so All passes every field.
func SelectFields(ctx context.Context, in stream.Source[FieldPart], selectors ...Selector) stream.Source[FieldPart] {
	out := stream.NewPipe[FieldPart](0)
	go func() {
		for f := range in.C() {
			if !anyMatches(selectors, f.Name) {
				continue
			}
			if err := out.Send(ctx, f); err != nil {
				break
			}
		}
		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		out.Close()
	}()
	return out
}

// RequireFields passes every field through unchanged and, at upstream
// completion, fails with a MissingFieldsError naming each required selector
// that matched nothing. The unmatched pattern itself is reported, since no
// resolved field name exists for it. Upstream errors are forwarded
// untouched.
func RequireFields(ctx context.Context, in stream.Source[FieldPart], selectors ...Selector) stream.Source[FieldPart] {
	out := stream.NewPipe[FieldPart](0)
	go func() {
		matched := make([]bool, len(selectors))
		for f := range in.C() {
			for i, sel := range selectors {
				if sel.Matches(f.Name) {
					matched[i] = true
				}
			}
			if err := out.Send(ctx, f); err != nil {
				break
			}
		}

		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		if missing := unsatisfied(selectors, matched); len(missing) > 0 {
			out.Fail(&MissingFieldsError{Patterns: missing})
			return
		}
		out.Close()
	}()
	return out
}

func anyMatches(selectors []Selector, name string) bool {
	for _, sel := range selectors {
		if sel.Matches(name) {
			return true
		}
	}
	return false
}
