// Package httpserver wraps net/http with graceful shutdown, environment
// driven configuration and health-check handlers. Run blocks until the
// context is cancelled or an interrupt/TERM signal arrives, then drains
// in-flight requests within the configured shutdown deadline.
package httpserver
