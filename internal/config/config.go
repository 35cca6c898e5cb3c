// Package config handles loading and validating amictl configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for connecting to and
// authenticating against an AMI listener.
type Config struct {
	AMI AMIConfig `koanf:"ami"`
}

// AMIConfig holds connection and login settings for a single manager
// session.
type AMIConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	Username      string        `koanf:"username"`
	Secret        string        `koanf:"secret"`
	AuthType      string        `koanf:"auth_type"`
	EventMask     string        `koanf:"event_mask"`
	InvokeTimeout time.Duration `koanf:"invoke_timeout"`
}

// Load reads configuration from a YAML file, layers environment
// variable overrides on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Any env var starting with "GOAMI_" overrides a config value.
	// GOAMI_AMI_HOST -> ami.host, GOAMI_AMI_AUTH_TYPE -> ami.auth_type
	if err := k.Load(env.Provider("GOAMI_", ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, "GOAMI_")),
			"_", ".", 1,
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := Config{
		AMI: AMIConfig{
			Port:          5038,
			AuthType:      "plain",
			EventMask:     "on",
			InvokeTimeout: 15 * time.Second,
		},
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports whether the config carries enough information to
// dial and log in.
func (c *Config) Validate() error {
	if c.AMI.Host == "" {
		return fmt.Errorf("config: ami.host is required")
	}
	if c.AMI.Port <= 0 || c.AMI.Port > 65535 {
		return fmt.Errorf("config: ami.port %d is out of range", c.AMI.Port)
	}
	if c.AMI.Username == "" {
		return fmt.Errorf("config: ami.username is required")
	}
	switch c.AMI.AuthType {
	case "plain", "md5":
	default:
		return fmt.Errorf("config: ami.auth_type must be \"plain\" or \"md5\", got %q", c.AMI.AuthType)
	}
	return nil
}
