// Package logging configures the process-wide slog logger and redacts
// credential material from log fields before it reaches any handler.
package logging
