// Package api defines the core types shared by the sandbox-mcp tool layer.
//
// This package provides the data model for advertising and invoking tools:
// tool descriptors and their argument schemas, validated arguments, sandbox
// execution results, the response content union, and the error taxonomy.
//
// Core types:
//   - [ToolDescriptor]: name, description and argument [Schema] of a tool
//   - [Schema]: ordered field list rendered as a JSON Schema document
//   - [Arguments]: argument map that passed [Validate]
//   - [ExecutionResult]: captured output of one sandbox execution
//   - [Content]: closed union of [TextContent], [ImageContent] and [ResourceContent]
//
// Errors:
//   - [UnknownToolError], [SchemaValidationError], [ExecutionProviderError] and
//     [DuplicateToolError]. All are returned as pointers and matched with errors.As.
//
// The package performs no I/O.
package api
