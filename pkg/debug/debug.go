// Package debug provides category-based debug logging for sandbox-mcp.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): SANDBOX_MCP_DEBUG env or logging.debug config
//   - Levels (HOW MUCH detail): SANDBOX_MCP_LOG_LEVEL env or logging.level config
//
// Usage:
//
//	debug.Log("sandbox", "execute", "session", id, "code_len", len(code))
//	if debug.Enabled("mcp") { /* expensive formatting */ }
//
// Categories: dispatch, sandbox, mcp, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
//
// All output goes to stderr. Stdout is reserved for the stdio transport.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	envCategories = "SANDBOX_MCP_DEBUG"
	envLevel      = "SANDBOX_MCP_LOG_LEVEL"
	envFormat     = "SANDBOX_MCP_LOG_FORMAT"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full untruncated sandbox request/response bodies are logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Read-only after Init().
var categories map[string]bool

// output is where Init sends log records and Raw writes.
var output io.Writer = os.Stderr

func init() {
	categories = parseCategories(os.Getenv(envCategories))
}

// Init configures the debug system and installs the default slog logger.
// Environment variables override the config values. format is "text"
// (default) or "json".
func Init(configCategories, configLevel, format string) {
	cats := os.Getenv(envCategories)
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv(envLevel)
	if level == "" {
		level = configLevel
	}
	if f := os.Getenv(envFormat); f != "" {
		format = f
	}

	slog.SetDefault(slog.New(NewHandler(output, ParseLevel(level), format)))
}

// NewHandler returns a slog handler writing to w at the given level.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when the log level is TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes plain text without slog formatting. Only emitted when the
// category is enabled AND the level is TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(output, text)
}

// ParseLevel converts a level string to a slog.Level. Unknown values
// map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if
// truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
