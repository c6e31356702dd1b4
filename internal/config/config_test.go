package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "trace-agent", cfg.App.Name)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, int64(256<<20), cfg.Trace.LogCapacityBytes)
	require.Equal(t, 65536, cfg.Registry.TensorCapacity)
}

func TestLoadFromFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: custom-agent\ntrace:\n  log_path: /tmp/custom.bin\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom-agent", cfg.App.Name)
	require.Equal(t, "/tmp/custom.bin", cfg.Trace.LogPath)
}

func TestEnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("TENSORTRACE_APP_NAME", "env-agent")
	t.Setenv("TENSORTRACE_SERVER_PORT", "9999")

	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: file-agent\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-agent", cfg.App.Name)
	require.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("TENSORTRACE_LOG_LEVEL", "bogus")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
