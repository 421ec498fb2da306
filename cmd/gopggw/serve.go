package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	pggw "github.com/rickchristie/pg-gateway"
)

const defaultConfigPath = ".gopggw/config.yaml"

func runServe() error {
	serverConfig, err := loadServerConfig(configPathFromEnv())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyEnvOverrides(serverConfig)

	if serverConfig.Server.Port <= 0 {
		panic("gopggw: server.port must be > 0")
	}
	if serverConfig.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is empty: set it in the config file or GOPGGW_API_KEY")
	}

	logger := setupLogger(serverConfig.Logging)

	if isTTY(os.Stderr.Fd()) {
		printBanner(os.Stderr, true)
		fmt.Fprintf(os.Stderr, "gopggw %s\n\n", version)
	}

	gw, err := pggw.New(*serverConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer gw.Close()

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	logger.Info().
		Int("port", serverConfig.Server.Port).
		Bool("writes_enabled", serverConfig.WritesEnabled).
		Bool("has_default_target", serverConfig.DefaultTarget != "").
		Msg("starting gopggw server")

	return http.ListenAndServe(addr, gw.Handler())
}

func configPathFromEnv() string {
	if path := os.Getenv("GOPGGW_CONFIG_PATH"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadServerConfig reads a YAML or JSON config file, chosen by extension.
func loadServerConfig(configPath string) (*pggw.ServerConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config pggw.ServerConfig
	switch filepath.Ext(configPath) {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return &config, nil
}

// applyEnvOverrides lets secrets stay out of the config file. Only the CLI
// reads the environment; the library never does.
func applyEnvOverrides(config *pggw.ServerConfig) {
	if key := os.Getenv("GOPGGW_API_KEY"); key != "" {
		config.Server.APIKey = key
	}
	if target := os.Getenv("GOPGGW_DEFAULT_TARGET"); target != "" {
		config.DefaultTarget = target
	}
}

func setupLogger(config pggw.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
