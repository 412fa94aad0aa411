package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SWB_SERVER__PORT")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Timeout != "300s" {
		t.Errorf("Load() timeout = %v, want 300s", cfg.Server.Timeout)
	}
	if cfg.Accounts.File != "accounts.yaml" {
		t.Errorf("Load() accounts file = %v, want accounts.yaml", cfg.Accounts.File)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  timeout: 60s
  api_key: sk-local
accounts:
  file: /etc/switchboard/accounts.yaml
usage:
  path: /var/lib/switchboard/usage.db
cursor:
  base_url: https://upstream.example
  timezone: Europe/Berlin
  client_version: 1.4.0
logging:
  level: debug
telemetry:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "sk-local" {
		t.Errorf("api_key = %v, want sk-local", cfg.Server.APIKey)
	}
	if cfg.Accounts.File != "/etc/switchboard/accounts.yaml" {
		t.Errorf("accounts file = %v", cfg.Accounts.File)
	}
	if cfg.Usage.Path != "/var/lib/switchboard/usage.db" {
		t.Errorf("usage path = %v", cfg.Usage.Path)
	}
	if cfg.Cursor.BaseURL != "https://upstream.example" {
		t.Errorf("base_url = %v", cfg.Cursor.BaseURL)
	}
	if cfg.Cursor.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %v", cfg.Cursor.Timezone)
	}
	if cfg.Cursor.ClientVersion != "1.4.0" {
		t.Errorf("client_version = %v", cfg.Cursor.ClientVersion)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %v", cfg.Logging.Level)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("telemetry.enabled = false, want true")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("SWB_SERVER__PORT", "9000")
	defer os.Unsetenv("SWB_SERVER__PORT")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_APIKeySubstitution(t *testing.T) {
	os.Setenv("SWITCHBOARD_KEY", "sk-secret")
	defer os.Unsetenv("SWITCHBOARD_KEY")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  api_key: ${SWITCHBOARD_KEY}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.APIKey != "sk-secret" {
		t.Errorf("api_key = %v, want sk-secret", cfg.Server.APIKey)
	}
}
