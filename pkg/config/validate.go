package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("server.transport must be \"stdio\" or \"http\", got %q", c.Server.Transport))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Sandbox.Mode {
	case SandboxModeURL:
		if c.Sandbox.URL == "" {
			errs = append(errs, errors.New("sandbox.url is required when sandbox.mode is \"url\""))
		} else if !strings.HasPrefix(c.Sandbox.URL, "http://") && !strings.HasPrefix(c.Sandbox.URL, "https://") {
			errs = append(errs, fmt.Errorf("sandbox.url must be an http(s) URL, got %q", c.Sandbox.URL))
		}
	case SandboxModeClaim:
		if c.Sandbox.Template == "" {
			errs = append(errs, errors.New("sandbox.template is required when sandbox.mode is \"claim\""))
		}
		if c.Sandbox.Namespace == "" {
			errs = append(errs, errors.New("sandbox.namespace is required when sandbox.mode is \"claim\""))
		}
		if c.Sandbox.ClaimTimeout <= 0 {
			errs = append(errs, fmt.Errorf("sandbox.claim_timeout must be > 0, got %s", c.Sandbox.ClaimTimeout))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.mode must be \"url\" or \"claim\", got %q", c.Sandbox.Mode))
	}

	// The sandbox protocol carries whole seconds.
	if c.Sandbox.ExecutionTimeout < time.Second {
		errs = append(errs, fmt.Errorf("sandbox.execution_timeout must be at least 1s, got %s", c.Sandbox.ExecutionTimeout))
	}
	if c.Sandbox.ReuseSessions && c.Sandbox.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.pool_size must be > 0 when sandbox.reuse_sessions is set, got %d", c.Sandbox.PoolSize))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
