package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "8000", cfg.Server.Port)
	require.Equal(t, "https://generativelanguage.googleapis.com", cfg.Upstream.BaseURL)
	require.Equal(t, 3, cfg.Upstream.MaxAttempts)
	require.Equal(t, 45*time.Second, cfg.PerAttemptTimeout())
	require.Equal(t, 120*time.Second, cfg.OverallDeadline())
	require.Equal(t, time.Hour, cfg.Pool.CoolingAuth())
	require.Equal(t, 5*time.Minute, cfg.Pool.CoolingQuota())
	require.Equal(t, 30*time.Second, cfg.Pool.CoolingTransient())
	require.True(t, cfg.Cache.Enabled)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
pool:
  credentials: ["file-key-1"]
upstream:
  max_attempts: 5
`), 0o644))

	t.Setenv("GEMINI_ADAPTER_PORT", "9100")
	t.Setenv("GEMINI_ADAPTER_CREDENTIALS", "env-key-1, env-key-2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Server.Port)
	require.Equal(t, []string{"env-key-1", "env-key-2"}, cfg.Pool.Credentials)
	require.Equal(t, 5, cfg.Upstream.MaxAttempts)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_ADAPTER_CREDENTIALS", "env-key-1")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate()) // no credentials

	cfg.Pool.Credentials = []string{"k"}
	require.NoError(t, cfg.Validate())

	cfg.Upstream.BaseURL = "https://example.com/"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "https://example.com", cfg.Upstream.BaseURL)

	cfg.Upstream.MaxAttempts = 0
	require.Error(t, cfg.Validate())
}

func TestManagerHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(keys string) {
		require.NoError(t, os.WriteFile(path, []byte(`
pool:
  credentials: ["k-1"]
security:
  client_keys: [`+keys+`]
`), 0o644))
	}
	write(`"old-key"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	m := NewManager(cfg, path)
	require.Equal(t, []string{"old-key"}, m.ClientKeys())

	reloaded := make(chan struct{}, 1)
	m.OnReload(func(*Config) { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	write(`"new-key"`)

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
	require.Equal(t, []string{"new-key"}, m.ClientKeys())
}
