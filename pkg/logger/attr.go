package logger

import "log/slog"

// Error returns a standard attribute for an error value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Component tags records with the subsystem that produced them.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Field tags records with a form field name.
func Field(name string) slog.Attr {
	return slog.String("field", name)
}

// Filename tags records with a client-provided file name.
func Filename(name string) slog.Attr {
	return slog.String("filename", name)
}

// Size tags records with a byte count.
func Size(n int64) slog.Attr {
	return slog.Int64("size", n)
}

// Group nests attributes under a single key.
func Group(key string, attrs ...any) slog.Attr {
	return slog.Group(key, attrs...)
}
