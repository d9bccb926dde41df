// Package transport provides the HTTP middleware chain shared by the
// sandbox-mcp HTTP endpoints.
//
// # Middleware
//
// Middleware wraps an http.Handler with cross-cutting behavior. Built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID)
// and structured logging via log/slog. Chain composes them so that the
// first middleware is the outermost wrapper.
//
// The MCP protocol itself is served by the mcp subpackage.
package transport
