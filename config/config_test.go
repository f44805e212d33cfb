package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	require.Equal(t, "25s", cfg.Worker.HandshakeTimeout)
	require.Equal(t, "30s", cfg.Worker.ReadyTimeout)
	require.Equal(t, []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}, cfg.Worker.ExtraPaths)
	require.Equal(t, "push-to-talk", cfg.Worker.RecordingMode)
	require.Equal(t, "conversation", cfg.Worker.WorkMode)
	require.Equal(t, 16000, cfg.Audio.SampleRate)
	require.Equal(t, "http://localhost:11434", cfg.Providers.Ollama.BaseURL)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
worker:
  handshake_timeout: 5s
  recording_mode: continuous
audio:
  sample_rate: 44100
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	require.Equal(t, "5s", cfg.Worker.HandshakeTimeout)
	require.Equal(t, "continuous", cfg.Worker.RecordingMode)
	require.Equal(t, 44100, cfg.Audio.SampleRate)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SPEEKIUM_TEST_KEY", "sk-test-123")

	cfg, err := Load(writeConfig(t, `
providers:
  openai:
    api_key: ${SPEEKIUM_TEST_KEY}
`))
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.Providers.OpenAI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultMatchesEmptyLoad(t *testing.T) {
	loaded, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	require.Equal(t, loaded, Default())
}
