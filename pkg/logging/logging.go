// Package logging provides the shared structured logger for cloudlaunch.
// All output is JSON via log/slog so that deployment runs can be collected
// and searched; values that look like credentials are masked before they
// are written.
package logging

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	logger *slog.Logger

	// Patterns for detecting sensitive data in free-form strings.
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(password|secret|token|key|auth)[\s]*[:=][\s]*[^\s]+`),
		regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		regexp.MustCompile(`AKIA[0-9A-Z]{16}`), // AWS access key ID
	}
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if os.Getenv("CLOUDLAUNCH_DEBUG") == "true" {
		opts.Level = slog.LevelDebug
	}

	logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// SetLogger overrides the default logger. Used by tests and by callers that
// want a different handler (e.g. text output for local runs).
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the current logger instance.
func GetLogger() *slog.Logger {
	return logger
}

// Sanitize masks sensitive data in a string before it is logged.
func Sanitize(s string) string {
	sanitized := s
	for _, pattern := range sensitivePatterns {
		sanitized = pattern.ReplaceAllStringFunc(sanitized, func(match string) string {
			parts := strings.SplitN(match, ":", 2)
			if len(parts) == 2 {
				return parts[0] + ": [REDACTED]"
			}
			parts = strings.SplitN(match, "=", 2)
			if len(parts) == 2 {
				return parts[0] + "=[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return sanitized
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Warn logs a warning. Warnings mark degraded-but-continuing conditions:
// the run proceeds and the condition is surfaced again in the final summary.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
