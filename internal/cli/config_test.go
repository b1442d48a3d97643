package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, &FileConfig{}, cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excimetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logLevel: debug
maxRetries: 5
retryDelay: 250ms
async: true
appName: checkout
serverAddress: http://pyroscope:4040
labels:
  env: prod
endpoint: http://otel:4318
serviceName: checkout
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.True(t, cfg.Async)
	assert.Equal(t, "checkout", cfg.AppName)
	assert.Equal(t, "http://pyroscope:4040", cfg.ServerAddress)
	assert.Equal(t, map[string]string{"env": "prod"}, cfg.Labels)
	assert.Equal(t, "http://otel:4318", cfg.Endpoint)
	assert.Equal(t, "checkout", cfg.ServiceName)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels: [not, a, map]"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
