package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	pggw "github.com/rickchristie/pg-gateway"
)

// validServerConfig returns a minimal valid ServerConfig for testing.
func validServerConfig() pggw.ServerConfig {
	return pggw.ServerConfig{
		Config: pggw.Config{
			Pool:  pggw.PoolConfig{MaxConns: 5},
			Query: pggw.QueryConfig{DefaultTimeoutSeconds: 30},
		},
		DefaultTarget: "postgres://localhost:5432/testdb",
		Server: pggw.ServerSettings{
			Port:   8080,
			APIKey: "secret",
		},
	}
}

func writeJSONConfig(t *testing.T, dir string, config pggw.ServerConfig) string {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func writeYAMLConfig(t *testing.T, dir string, config pggw.ServerConfig) string {
	t.Helper()
	data, err := yaml.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	t.Parallel()
	path := writeJSONConfig(t, t.TempDir(), validServerConfig())

	loaded, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", loaded.Server.Port)
	}
	if loaded.Pool.MaxConns != 5 {
		t.Fatalf("expected max_conns 5, got %d", loaded.Pool.MaxConns)
	}
	if loaded.DefaultTarget != "postgres://localhost:5432/testdb" {
		t.Fatalf("unexpected default_target %q", loaded.DefaultTarget)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	t.Parallel()
	path := writeYAMLConfig(t, t.TempDir(), validServerConfig())

	loaded, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", loaded.Server.Port)
	}
	if loaded.Query.DefaultTimeoutSeconds != 30 {
		t.Fatalf("expected default_timeout_seconds 30, got %d", loaded.Query.DefaultTimeoutSeconds)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := loadServerConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if _, err := loadServerConfig(path); err == nil {
		t.Fatal("expected an error for invalid YAML")
	}
}

// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GOPGGW_API_KEY", "env-secret")
	t.Setenv("GOPGGW_DEFAULT_TARGET", "postgres://env-host/db")

	config := validServerConfig()
	applyEnvOverrides(&config)
	if config.Server.APIKey != "env-secret" {
		t.Fatalf("expected API key override, got %q", config.Server.APIKey)
	}
	if config.DefaultTarget != "postgres://env-host/db" {
		t.Fatalf("expected target override, got %q", config.DefaultTarget)
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("GOPGGW_CONFIG_PATH", "/etc/gopggw/config.yaml")
	if got := configPathFromEnv(); got != "/etc/gopggw/config.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	t.Setenv("GOPGGW_CONFIG_PATH", "")
	if got := configPathFromEnv(); got != defaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
}

func TestSetupLoggerLevels(t *testing.T) {
	t.Parallel()
	logger := setupLogger(pggw.LoggingConfig{Level: "debug"})
	if logger.GetLevel().String() != "debug" {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	logger = setupLogger(pggw.LoggingConfig{Level: "error"})
	if logger.GetLevel().String() != "error" {
		t.Fatalf("expected error level, got %s", logger.GetLevel())
	}
	logger = setupLogger(pggw.LoggingConfig{})
	if logger.GetLevel().String() != "info" {
		t.Fatalf("expected info level by default, got %s", logger.GetLevel())
	}
}
