package partstream

import (
	"context"

	"github.com/partstream/partstream/multipart"
)

// ContextKey is a collision-free key for request-scoped context values.
type ContextKey struct{ name string }

// NewContextKey creates a new context key. The name should be unique within
// the application.
func NewContextKey(name string) *ContextKey {
	return &ContextKey{name}
}

// ContextValue retrieves a typed value from the context, returning the zero
// value of T if the key is absent or holds a different type.
func ContextValue[T any](ctx context.Context, key any) T {
	val, _ := ctx.Value(key).(T)
	return val
}

var formKey = NewContextKey("multipart form")

// withForm stores the request's decoded form streams on the context so
// handler-side helpers can retrieve them synchronously.
func withForm(ctx context.Context, form *multipart.Form) context.Context {
	return context.WithValue(ctx, formKey, form)
}

// FormFromContext returns the multipart form streams the interceptor
// attached to the request context, or nil when the request was not
// intercepted (not multipart, or no middleware installed).
func FormFromContext(ctx context.Context) *multipart.Form {
	return ContextValue[*multipart.Form](ctx, formKey)
}
