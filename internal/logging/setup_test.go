package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupMirrorsToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "adapter.log")
	require.NoError(t, Setup(false, path))

	log.Info("file sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "file sink check")

	// Reconfiguring without a file closes the previous sink.
	require.NoError(t, Setup(true, ""))
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestKeyPrefixHidesSecret(t *testing.T) {
	require.Equal(t, "super-se...", KeyPrefix("super-secret-value"))
	require.Equal(t, "short", KeyPrefix("short"))
}
