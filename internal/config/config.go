// Package config loads Envoy's runtime configuration: environment variables
// first (§6), with an optional envoy.yaml file overlay loaded underneath
// them, mirroring the teacher's environment-first precedence in
// internal/config/loader.go while dropping that package's $include-resolving
// multi-file machinery, which this system's single flat config doesn't need.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is Envoy's full runtime configuration (§6 "Environment variables"
// plus the integration credential env file path).
type Config struct {
	LLMAPIKey    string `yaml:"llm_api_key"`
	LLMBaseURL   string `yaml:"llm_base_url"`
	LLMModel     string `yaml:"llm_model"`
	DatabasePath string `yaml:"database_path"`
	EnvFilePath  string `yaml:"env_file_path"`

	ToolsFSRoot       string `yaml:"tools_fs_root"`
	ToolsShellEnabled bool   `yaml:"tools_shell_enabled"`

	Port int `yaml:"port"`
}

// defaults mirror a single-user local deployment: a database file and
// credential env file in the working directory, no shell tool, no filesystem root.
func defaults() Config {
	return Config{
		LLMModel:     "claude-sonnet-4-5-20250929",
		DatabasePath: "envoy.db",
		EnvFilePath:  "envoy.env",
		Port:         8080,
	}
}

// Load builds a Config from, in increasing precedence: hardcoded defaults,
// an optional YAML file at path (ignored if path is empty or the file
// doesn't exist), then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("config: LLM_API_KEY is required")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TOOLS_FS_ROOT"); v != "" {
		cfg.ToolsFSRoot = v
	}
	if v := os.Getenv("TOOLS_SHELL_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.ToolsShellEnabled = enabled
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
}
