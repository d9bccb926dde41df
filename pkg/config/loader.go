package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/sandbox-mcp/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SANDBOX_MCP_CONFIG env, ./config.yaml, /etc/sandbox-mcp/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SANDBOX_MCP_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/sandbox-mcp/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("SANDBOX_MCP_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/sandbox-mcp/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

func stringVar(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*dst(cfg) = v
		return nil
	}
}

func intVar(dst func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(cfg) = n
		return nil
	}
}

func boolVar(dst func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(cfg) = b
		return nil
	}
}

func durationVar(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"SANDBOX_MCP_TRANSPORT", stringVar(func(c *Config) *string { return &c.Server.Transport })},
	{"SANDBOX_MCP_PORT", intVar(func(c *Config) *int { return &c.Server.Port })},
	{"SANDBOX_MCP_SANDBOX_MODE", stringVar(func(c *Config) *string { return &c.Sandbox.Mode })},
	{"SANDBOX_MCP_SANDBOX_URL", stringVar(func(c *Config) *string { return &c.Sandbox.URL })},
	{"SANDBOX_API_KEY", stringVar(func(c *Config) *string { return &c.Sandbox.APIKey })},
	{"SANDBOX_MCP_SANDBOX_API_KEY", stringVar(func(c *Config) *string { return &c.Sandbox.APIKey })},
	{"SANDBOX_MCP_SANDBOX_TEMPLATE", stringVar(func(c *Config) *string { return &c.Sandbox.Template })},
	{"SANDBOX_MCP_SANDBOX_NAMESPACE", stringVar(func(c *Config) *string { return &c.Sandbox.Namespace })},
	{"SANDBOX_MCP_EXECUTION_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Sandbox.ExecutionTimeout })},
	{"SANDBOX_MCP_CLAIM_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Sandbox.ClaimTimeout })},
	{"SANDBOX_MCP_REUSE_SESSIONS", boolVar(func(c *Config) *bool { return &c.Sandbox.ReuseSessions })},
	{"SANDBOX_MCP_POOL_SIZE", intVar(func(c *Config) *int { return &c.Sandbox.PoolSize })},
	{"SANDBOX_MCP_INCLUDE_FILES", boolVar(func(c *Config) *bool { return &c.Sandbox.IncludeFiles })},
	{"SANDBOX_MCP_METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Observability.Metrics.Enabled })},
	{"SANDBOX_MCP_TRACING_ENABLED", boolVar(func(c *Config) *bool { return &c.Observability.Tracing.Enabled })},
	{"SANDBOX_MCP_TRACING_ENDPOINT", stringVar(func(c *Config) *string { return &c.Observability.Tracing.Endpoint })},
}

// applyEnvOverrides maps environment variables to config fields. Later
// bindings win, so SANDBOX_MCP_SANDBOX_API_KEY overrides SANDBOX_API_KEY.
func applyEnvOverrides(cfg *Config) error {
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		debug.Log("config", "environment override", "var", b.name)
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Sandbox.APIKeyFile != "" && cfg.Sandbox.APIKey == "" {
		val, err := readSecretFile(cfg.Sandbox.APIKeyFile)
		if err != nil {
			return fmt.Errorf("sandbox.api_key_file: %w", err)
		}
		cfg.Sandbox.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
