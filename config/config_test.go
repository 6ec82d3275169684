package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/provider/bblocks"
)

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.StaleIfError)
	assert.False(t, cfg.Cache.RespectHeaders)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Zero(t, cfg.HTTP.Rate)
	assert.Equal(t, "jq", cfg.JQ.Binary)
	assert.Equal(t, backend.DefaultShaclCommand, cfg.Engine.Shacl)
	assert.Equal(t, bblocks.DefaultRegistryURL, cfg.BBlocks.Registry)
	assert.False(t, cfg.Log.JSON)
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEMLIFT_CACHE_DIR", "/tmp/semlift-cache")
	t.Setenv("SEMLIFT_CACHE_TTL", "90m")
	t.Setenv("SEMLIFT_HTTP_RATE", "2.5")
	t.Setenv("SEMLIFT_JQ_BINARY", "gojq")
	t.Setenv("SEMLIFT_LOG_VERBOSE", "true")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/semlift-cache", cfg.Cache.Dir)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2.5, cfg.HTTP.Rate)
	assert.Equal(t, "gojq", cfg.JQ.Binary)
	assert.True(t, cfg.Log.Verbose)

	rc := cfg.ResolverCache()
	assert.Equal(t, "/tmp/semlift-cache", rc.Dir)
	assert.Equal(t, 90*time.Minute, rc.TTL)
	assert.Equal(t, 30*time.Second, rc.Timeout)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "semlift.toml"), []byte(`
[cache]
respect_headers = true
ttl = "1h"

[engine]
shacl = "shacl validate --shapes {shapes} --data {data}"
`), 0o644))

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Cache.RespectHeaders)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "shacl validate --shapes {shapes} --data {data}", cfg.Engine.Shacl)
	assert.Equal(t, backend.DefaultConstructCommand, cfg.Engine.Construct)
}

func TestExplicitFileMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
