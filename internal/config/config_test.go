package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_API_BASE", "OPENAI_MODEL", "EZQUERY_DB_PATH", "EZQUERY_REMOTE"} {
		t.Setenv(k, "")
	}
}

func TestLoadFromCreatesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ezquery", "config.toml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.RowLimit)
	assert.Equal(t, DefaultBaseURL, cfg.AI.BaseURL)
	assert.Equal(t, DefaultModel, cfg.AI.Model)
	assert.Equal(t, []string{"ctrl+d"}, cfg.Keys.Execute)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromFillsMissingFields(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("row_limit = 25\n[ai]\nmodel = \"local-model\"\n"), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.RowLimit)
	assert.Equal(t, "local-model", cfg.AI.Model)
	assert.Equal(t, DefaultBaseURL, cfg.AI.BaseURL)
	assert.Equal(t, 60, cfg.QueryTimeoutSeconds)
	assert.Equal(t, "#D8DEE9", cfg.Theme.TextPrimary)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_BASE", "http://localhost:11434/v1/")
	t.Setenv("OPENAI_MODEL", "qwen")
	t.Setenv("EZQUERY_DB_PATH", "/tmp/x.db")
	t.Setenv("EZQUERY_REMOTE", "http://10.0.0.2:7788")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.BaseURL)
	assert.Equal(t, "qwen", cfg.AI.Model)
	assert.Equal(t, "/tmp/x.db", cfg.DataPath)
	assert.Equal(t, "http://10.0.0.2:7788", cfg.Remote)
}

func TestAPIKeyNeverWritten(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.AI.APIKey = "sk-secret"

	require.NoError(t, cfg.SaveTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipherWithKey(make([]byte, 32))
	require.NoError(t, err)

	enc, err := c.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, enc, "hunter2")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", dec)

	other, err := NewCipherWithKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	_, err = other.Decrypt(enc)
	assert.Error(t, err)

	_, err = NewCipherWithKey([]byte("short"))
	assert.Error(t, err)
}
