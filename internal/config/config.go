// Package config loads switchboard configuration from a YAML file with a
// SWB_-prefixed environment variable overlay.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Accounts  AccountsConfig  `koanf:"accounts"`
	Usage     UsageConfig     `koanf:"usage"`
	Cursor    CursorConfig    `koanf:"cursor"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port    int    `koanf:"port"`
	Timeout string `koanf:"timeout"` // Duration string like "300s"
	APIKey  string `koanf:"api_key"` // Optional: require this bearer key on every request
}

type AccountsConfig struct {
	File string `koanf:"file"`
}

type UsageConfig struct {
	Path string `koanf:"path"` // Empty disables the ledger
}

type CursorConfig struct {
	BaseURL       string `koanf:"base_url"`
	Timezone      string `koanf:"timezone"`
	ClientVersion string `koanf:"client_version"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the config file at path and layers SWB_-prefixed environment
// variables on top. A missing file is fine; env vars alone can carry the
// whole configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config: SWB_SERVER__PORT=9000
	// becomes server.port.
	if err := k.Load(env.Provider("SWB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SWB_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.timeout") {
		k.Set("server.timeout", "300s")
	}
	if !k.Exists("accounts.file") {
		k.Set("accounts.file", "accounts.yaml")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.Server.APIKey = substituteEnvVars(cfg.Server.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
