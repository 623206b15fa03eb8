// Package config loads file-driven configuration for applications embedding
// agentloop. The library itself is configured through functional options;
// this package exists for hosts that want a single YAML file (plus a .env
// file for credentials) to describe the gateway, loop limits and MCP
// servers.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers accepted by GatewayConfig.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Duration wraps time.Duration so YAML values can be written as "30s" or
// "2m" instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler accepting Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GatewayConfig selects and parameterizes the model backend.
type GatewayConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model,omitempty"`
	Temperature  float64 `yaml:"temperature,omitempty"`
	MaxTokens    int64   `yaml:"max_tokens,omitempty"`
	SystemPrompt string  `yaml:"system_prompt,omitempty"`
}

// LoopConfig bounds the agent loop.
type LoopConfig struct {
	MaxTurns         int      `yaml:"max_turns"`
	Timeout          Duration `yaml:"timeout,omitempty"` // wall clock per Submit
	MaxParallelTools int      `yaml:"max_parallel_tools"`
	ToolTimeout      Duration `yaml:"tool_timeout"`
}

// RetryConfig bounds gateway retries.
type RetryConfig struct {
	MaxRetries      uint64   `yaml:"max_retries"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
}

// MCPServerConfig describes a single MCP server subprocess whose tools are
// registered into the session.
type MCPServerConfig struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	Arguments []string `yaml:"arguments,omitempty"`
}

// Config is the complete host configuration.
type Config struct {
	Gateway    GatewayConfig     `yaml:"gateway"`
	Loop       LoopConfig        `yaml:"loop"`
	Retry      RetryConfig       `yaml:"retry"`
	MCPServers []MCPServerConfig `yaml:"mcp_servers,omitempty"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Default returns a baseline configuration targeting Anthropic with the
// loop and retry defaults used across the library.
func Default() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{Provider: ProviderAnthropic},
		Loop: LoopConfig{
			MaxTurns:         25,
			MaxParallelTools: 4,
			ToolTimeout:      Duration(60 * time.Second),
		},
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: Duration(500 * time.Millisecond),
			MaxInterval:     Duration(10 * time.Second),
		},
	}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}

// Load reads a YAML config file, layered over Default. Unset fields keep
// their defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	switch c.Gateway.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown gateway provider %q", c.Gateway.Provider)
	}
	if c.Loop.MaxTurns <= 0 {
		return fmt.Errorf("loop.max_turns must be positive, got %d", c.Loop.MaxTurns)
	}
	if c.Loop.MaxParallelTools <= 0 {
		return fmt.Errorf("loop.max_parallel_tools must be positive, got %d", c.Loop.MaxParallelTools)
	}
	for _, srv := range c.MCPServers {
		if srv.Name == "" || srv.Command == "" {
			return fmt.Errorf("mcp server entries need both name and command")
		}
	}
	return nil
}

// LoadEnv loads API keys and other secrets from .env files into the process
// environment (the provider SDKs read ANTHROPIC_API_KEY / OPENAI_API_KEY
// themselves). A missing .env file is not an error; explicit paths are.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(paths...)
}
