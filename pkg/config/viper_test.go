package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSearchesDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.yaml"), []byte("chat:\n  bot_name: Relay\n"), 0o600))

	v, err := Load("chat", dir)
	require.NoError(t, err)
	assert.Equal(t, "Relay", v.GetString("chat.bot_name"))
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	v, err := Load("does-not-exist", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, v.ConfigFileUsed())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.yaml"), []byte("history:\n  driver: sql\n"), 0o600))
	t.Setenv("HISTORY_DRIVER", "mongo")

	v, err := Load("chat", dir)
	require.NoError(t, err)
	assert.Equal(t, "mongo", v.GetString("history.driver"))
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load("chat")
	assert.Error(t, err)
}
