// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/abudulemusa/foolscap/lib/schema"
	"github.com/abudulemusa/foolscap/lib/token"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "FOOLSCAP_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// productionMaxTokenBytes is the per-token limit production applies
// when its section does not set one.
const productionMaxTokenBytes = 256 << 10

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Limits bounds what a peer can make this process buffer or walk.
	Limits LimitsConfig `yaml:"limits"`

	// Broker configures identity and addressing.
	Broker BrokerConfig `yaml:"broker"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Limits *LimitsConfig `yaml:"limits,omitempty"`
	Broker *BrokerConfig `yaml:"broker,omitempty"`
}

// LimitsConfig bounds inbound data.
type LimitsConfig struct {
	// MaxDepth is the deepest container nesting accepted, and the
	// deepest a constraint check will recurse.
	// Default: 64
	MaxDepth int `yaml:"max_depth"`

	// MaxTokenBytes is the largest single wire token accepted. It
	// bounds every string.
	// Default: 1 MiB (development), 256 KiB (production)
	MaxTokenBytes int `yaml:"max_token_bytes"`

	// MaxMessageTokens is the most tokens one message may contain.
	// Default: 65536
	MaxMessageTokens int `yaml:"max_message_tokens"`

	// MaxContainerLength bounds containers whose members no declared
	// constraint describes.
	// Default: 1024
	MaxContainerLength int `yaml:"max_container_length"`
}

// BrokerConfig configures the local broker directory.
type BrokerConfig struct {
	// Listen is the TCP address to accept connections on. Empty means
	// the process only makes outbound connections.
	Listen string `yaml:"listen"`

	// Location is the routing hint written into SturdyRefs this process
	// issues. Defaults to Listen.
	Location string `yaml:"location"`

	// StateDir holds the authority keypair.
	// Default: ${HOME}/.local/state/foolscap
	StateDir string `yaml:"state_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Limits: LimitsConfig{
			MaxDepth:           64,
			MaxTokenBytes:      1 << 20,
			MaxMessageTokens:   65536,
			MaxContainerLength: 1024,
		},
		Broker: BrokerConfig{
			StateDir: "${HOME}/.local/state/foolscap",
		},
	}
}

// Load loads configuration from the file named by FOOLSCAP_CONFIG. It
// fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your configuration file", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	if cfg.Broker.Location == "" {
		cfg.Broker.Location = cfg.Broker.Listen
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies the section for Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Limits: &LimitsConfig{MaxTokenBytes: productionMaxTokenBytes},
			}
		}
	}

	if overrides == nil {
		return
	}

	if limits := overrides.Limits; limits != nil {
		if limits.MaxDepth != 0 {
			c.Limits.MaxDepth = limits.MaxDepth
		}
		if limits.MaxTokenBytes != 0 {
			c.Limits.MaxTokenBytes = limits.MaxTokenBytes
		}
		if limits.MaxMessageTokens != 0 {
			c.Limits.MaxMessageTokens = limits.MaxMessageTokens
		}
		if limits.MaxContainerLength != 0 {
			c.Limits.MaxContainerLength = limits.MaxContainerLength
		}
	}

	if broker := overrides.Broker; broker != nil {
		if broker.Listen != "" {
			c.Broker.Listen = broker.Listen
		}
		if broker.Location != "" {
			c.Broker.Location = broker.Location
		}
		if broker.StateDir != "" {
			c.Broker.StateDir = broker.StateDir
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Broker.StateDir = filepath.Clean(expandVars(c.Broker.StateDir, vars))
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"limits.max_depth", c.Limits.MaxDepth},
		{"limits.max_token_bytes", c.Limits.MaxTokenBytes},
		{"limits.max_message_tokens", c.Limits.MaxMessageTokens},
		{"limits.max_container_length", c.Limits.MaxContainerLength},
	}
	for _, field := range positive {
		if field.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", field.name, field.value))
		}
	}

	if c.Broker.StateDir == "" {
		errs = append(errs, fmt.Errorf("broker.state_dir is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Broker.StateDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Broker.StateDir, err)
	}
	return nil
}

// SchemaLimits returns the limits for constraint checks.
func (c *Config) SchemaLimits() schema.Limits {
	return schema.Limits{
		MaxDepth:           c.Limits.MaxDepth,
		MaxContainerLength: c.Limits.MaxContainerLength,
	}
}

// TokenLimits returns the limits for the wire token reader.
func (c *Config) TokenLimits() token.Limits {
	return token.Limits{
		MaxTokenBytes:    c.Limits.MaxTokenBytes,
		MaxMessageTokens: c.Limits.MaxMessageTokens,
		MaxDepth:         c.Limits.MaxDepth + token.EnvelopeDepth,
	}
}
