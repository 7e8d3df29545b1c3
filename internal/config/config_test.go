package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "DATABASE_PATH", "TOOLS_FS_ROOT", "TOOLS_SHELL_ENABLED", "PORT"} {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, old)
			}
		})
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadAppliesDefaultsThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("LLM_API_KEY", "sk-test")
	os.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.LLMAPIKey)
	require.Equal(t, "envoy.db", cfg.DatabasePath)
	require.Equal(t, 9090, cfg.Port)
}

func TestLoadYAMLOverlayUnderEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "envoy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_api_key: sk-file\nllm_model: claude-test\ndatabase_path: /data/envoy.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-file", cfg.LLMAPIKey) // no env key set: the file's key applies
	require.Equal(t, "claude-test", cfg.LLMModel)
	require.Equal(t, "/data/envoy.db", cfg.DatabasePath)

	os.Setenv("LLM_API_KEY", "sk-test")
	os.Setenv("LLM_MODEL", "claude-env-wins")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.LLMAPIKey)
	require.Equal(t, "claude-env-wins", cfg.LLMModel, "env var must win over the yaml overlay")
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	os.Setenv("LLM_API_KEY", "sk-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.LLMAPIKey)
}
