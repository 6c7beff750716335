// Package logging wraps log/slog with the attribute helpers and context
// propagation used across murmur. Console output renders compact scoped
// lines; JSON output is available for machine consumers.
package logging
