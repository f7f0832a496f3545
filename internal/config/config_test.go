// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 45*time.Second, cfg.Detection.Timeout)
	assert.Equal(t, 2.0, cfg.Mapper.MinConfidence)
	assert.Equal(t, "./screenshots", cfg.Filler.ScreenshotDir)
	assert.True(t, cfg.Profiling.Enabled)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	contents := `
logger:
  level: debug
  format: json
browser:
  headless: false
network:
  navigation_timeout: 5s
mapper:
  min_confidence: 3.5
database:
  dsn: postgres://localhost/autoapply
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(contents), 0o600))

	v := viper.New()
	cfg, err := Load(v, cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 3.5, cfg.Mapper.MinConfidence)
	assert.Equal(t, "postgres://localhost/autoapply", cfg.Database.DSN)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Network.EvaluationTimeout)
	assert.Equal(t, "autoapply", cfg.Logger.ServiceName)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger: ["), 0o600))

	_, err := Load(viper.New(), cfgPath)
	assert.Error(t, err)
}
