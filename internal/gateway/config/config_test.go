package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("MINIO_ROOT_USER", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "memory", cfg.EventLog.Backend)
	assert.Equal(t, 256, cfg.EventLog.ReadCacheSize)
	assert.Equal(t, 5*time.Second, cfg.EventLog.StorageTimeout)
	assert.Equal(t, 64, cfg.Tree.MaxDepth)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Ownership.CacheTTL)
	assert.False(t, cfg.Export.CanUseS3())
	assert.True(t, cfg.AllowsReset())
}

func TestLoadFromEnvAndFlag(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "9000")
	t.Setenv("EVENTLOG_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/sketches")
	t.Setenv("STORAGE_TIMEOUT", "250ms")
	t.Setenv("TREE_MAX_DEPTH", "8")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 250*time.Millisecond, cfg.EventLog.StorageTimeout)
	assert.Equal(t, 8, cfg.Tree.MaxDepth)
	assert.False(t, cfg.AllowsReset())

	cfg, err = Load([]string{"-port", ":7000"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Port)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("EVENTLOG_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load(nil)
	assert.Error(t, err)

	t.Setenv("EVENTLOG_BACKEND", "redis")
	_, err = Load(nil)
	assert.Error(t, err)
}

func TestLocalDefaultsUseMinIO(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("EXPORT_S3_ENDPOINT", "")
	t.Setenv("MINIO_ROOT_USER", "minio")
	t.Setenv("MINIO_ROOT_PASSWORD", "minio123")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.True(t, cfg.Export.CanUseS3())
	assert.Equal(t, "minio:9000", cfg.Export.Endpoint)
	assert.False(t, cfg.Export.UseSSL)
}
