// Package config provides unified configuration for sandbox-mcp.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SANDBOX_MCP_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for sandbox-mcp.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds MCP transport settings.
type ServerConfig struct {
	Transport    string        `yaml:"transport"`     // "stdio" or "http", default: "stdio"
	Port         int           `yaml:"port"`          // http only, default: 8000
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// Sandbox modes.
const (
	// SandboxModeURL talks to a sandbox server at a fixed URL.
	SandboxModeURL = "url"

	// SandboxModeClaim acquires sandbox pods through SandboxClaim resources.
	SandboxModeClaim = "claim"
)

// SandboxConfig holds execution backend settings.
type SandboxConfig struct {
	Mode             string        `yaml:"mode"`              // "url" or "claim", default: "url"
	URL              string        `yaml:"url"`               // url mode
	APIKey           string        `yaml:"api_key"`           // optional bearer token
	APIKeyFile       string        `yaml:"api_key_file"`      // _file variant for api_key
	Template         string        `yaml:"template"`          // claim mode: SandboxTemplate name
	Namespace        string        `yaml:"namespace"`         // claim mode, default: "default"
	ExecutionTimeout time.Duration `yaml:"execution_timeout"` // default: 60s
	ClaimTimeout     time.Duration `yaml:"claim_timeout"`     // default: 30s
	ReuseSessions    bool          `yaml:"reuse_sessions"`    // default: false
	PoolSize         int           `yaml:"pool_size"`         // default: 4
	IncludeFiles     bool          `yaml:"include_files"`     // default: false
}

// LoggingConfig holds log settings. SANDBOX_MCP_LOG_LEVEL and
// SANDBOX_MCP_DEBUG take precedence at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings. Metrics are
// only served by the http transport.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`      // default: false
	Endpoint    string `yaml:"endpoint"`     // OTLP/HTTP traces URL
	ServiceName string `yaml:"service_name"` // default: "sandbox-mcp"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Transport:    "stdio",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Sandbox: SandboxConfig{
			Mode:             SandboxModeURL,
			URL:              "http://localhost:8080",
			Namespace:        "default",
			ExecutionTimeout: 60 * time.Second,
			ClaimTimeout:     30 * time.Second,
			PoolSize:         4,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				ServiceName: "sandbox-mcp",
			},
		},
	}
}
