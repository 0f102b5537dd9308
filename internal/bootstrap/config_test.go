package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Setup(filepath.Join(t.TempDir(), "missing.env"))

		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.ServerPort)
		assert.Equal(t, 500, cfg.RegistryCapacity)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, 30*time.Minute, cfg.WaitingTimeout)
		assert.Equal(t, 6.5, cfg.DefaultKomi)
		assert.Equal(t, BroadcastLocal, cfg.BroadcastMode)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		content := "SERVER_PORT=9090\nREGISTRY_CAPACITY=10\nSESSION_TTL=2m\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Setup(path)

		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.ServerPort)
		assert.Equal(t, 10, cfg.RegistryCapacity)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	})

	t.Run("environment wins over the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\n"), 0o600))
		t.Setenv("LOG_LEVEL", "warn")

		cfg, err := Setup(path)

		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("unknown broadcast mode is rejected", func(t *testing.T) {
		t.Setenv("BROADCAST_MODE", "carrier-pigeon")

		_, err := Setup("")

		assert.Error(t, err)
	})
}
