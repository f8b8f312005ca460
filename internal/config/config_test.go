package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "originals", cfg.Minio.Bucket)
	assert.Equal(t, 256, cfg.Embedder.BatchSize)
	assert.Equal(t, "eng+fra", cfg.OCR.Languages)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 4000, cfg.Pipeline.SyntheticPageChars)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkTargetChars)
	assert.Equal(t, 150, cfg.Pipeline.ChunkOverlapChars)
	assert.Equal(t, 0.10, cfg.Search.LatestBoost)
	assert.Equal(t, 0.05, cfg.Search.OCRBoostFactor)
	assert.Equal(t, 0.9, cfg.Search.ConflictThreshold)
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("CARREL_TEST_SECRET", "s3cret")
	assert.Equal(t, "s3cret", ResolveEnvVars("${CARREL_TEST_SECRET}"))
	assert.Equal(t, "prefix-s3cret", ResolveEnvVars("prefix-${CARREL_TEST_SECRET}"))
	assert.Equal(t, "plain", ResolveEnvVars("plain"))
	assert.Equal(t, "", ResolveEnvVars(""))
}

func TestWriteDefaultAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bucket: originals")
	assert.Contains(t, string(data), "conflict_threshold: 0.9")

	cm, err := NewManager(path)
	require.NoError(t, err)
	cfg := cm.Get()
	assert.Equal(t, "originals", cfg.Minio.Bucket)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}
