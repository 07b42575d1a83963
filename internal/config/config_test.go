package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingua-lens/lens/internal/errors"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.LocalTimeout())
	assert.Equal(t, 10*time.Second, cfg.CloudTimeout())
}

func TestLoadOverridesAndExpandsPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("LENS_TEST_DIR", "/srv/lens")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "0.0.0.0:9000"

[router]
local_timeout_ms = 5000
cache_size = 128
dedup_inflight = false

[engine]
load_timeout_seconds = 600

[paths]
data_dir = "~/lens-data"
settings_db = "$LENS_TEST_DIR/settings.db"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.LocalTimeout())
	assert.Equal(t, 128, cfg.Router.CacheSize)
	assert.False(t, cfg.Router.DedupInflight)
	assert.True(t, cfg.Router.LazyInit)
	assert.Equal(t, 10*time.Minute, cfg.LoadTimeout())
	assert.Equal(t, filepath.Join(home, "lens-data"), cfg.Paths.DataDir)
	assert.Equal(t, "/srv/lens/settings.db", cfg.Paths.SettingsDB)
	assert.Equal(t, "gpt-4o-mini", cfg.Cloud.Model)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cloud]\nprice_per_million = -1.0\n[router]\ncache_size = 0\n[logging]\nformat = \"xml\"\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
	assert.Contains(t, err.Error(), "router.cache_size")
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "cloud.price_per_million")
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[router\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Cloud.Model = "gpt-4.1-mini"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
