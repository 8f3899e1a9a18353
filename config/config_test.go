package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("Test full", func(t *testing.T) {
		cfg, err := Parse([]byte(`
HTTPPort: 8000
RPCPort: 50061
MetricsPort: 9100
logLevel: debug
development: true
imageBackend: opencv
datasetRoot: /data/bdd
import:
  skipUnlabeled: true
export:
  resizeLonger: 640
webhook:
  url: http://registry:9000/hooks/bdd
  retries: 2
  timeout: 3s
preview:
  strokeWidth: 3.5
`))
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.HTTPPort)
		assert.Equal(t, 50061, cfg.RPCPort)
		assert.Equal(t, 9100, cfg.MetricsPort)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.Development)
		assert.Equal(t, "opencv", cfg.ImageBackend)
		assert.Equal(t, "/data/bdd", cfg.DatasetRoot)
		assert.True(t, cfg.Import.SkipUnlabeled)
		assert.Equal(t, 640, cfg.Export.ResizeLonger)
		assert.Equal(t, "http://registry:9000/hooks/bdd", cfg.Webhook.URL)
		assert.Equal(t, 2, cfg.Webhook.Retries)
		assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
		assert.Equal(t, 3.5, cfg.Preview.StrokeWidth)
	})

	t.Run("Test defaults", func(t *testing.T) {
		cfg, err := Parse([]byte(`logLevel: warn`))
		require.NoError(t, err)
		def := Default()
		def.LogLevel = "warn"
		assert.Equal(t, def, cfg)
	})

	t.Run("Test invalid values fall back", func(t *testing.T) {
		cfg, err := Parse([]byte("HTTPPort: -1\nRPCPort: 70000\nexport:\n  resizeLonger: -5\nwebhook:\n  retries: -3\npreview:\n  strokeWidth: 0\n"))
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, 50051, cfg.RPCPort)
		assert.Equal(t, 0, cfg.Export.ResizeLonger)
		assert.Equal(t, 0, cfg.Webhook.Retries)
		assert.Equal(t, 2.0, cfg.Preview.StrokeWidth)
	})

	t.Run("Test bad yaml", func(t *testing.T) {
		_, err := Parse([]byte("HTTPPort: [1, 2"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTPPort: 8181\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.HTTPPort)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
