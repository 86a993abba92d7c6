// Package logger builds configured slog.Logger instances and provides
// attribute helpers for consistent structured logging across the module.
package logger
