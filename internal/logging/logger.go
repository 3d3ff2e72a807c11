// Package logging defines the structured-logging interface used by the
// offline engines and the CLI, and a log/slog implementation of it.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "checkout complete", "checkout_id", id, "records", n)
type Logger interface {
	// Debug logs diagnostic detail (SQL, HTTP round-trips).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs phase transitions and completed operations.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs non-fatal failures that the caller recovers from.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures that abort an operation.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
