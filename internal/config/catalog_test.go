package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogConfigDefaultsWithoutFile(t *testing.T) {
	holder, err := NewCatalogConfigHolder(Config{CatalogConfigDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 20, cfg.Query.DefaultPageSize)
	assert.Equal(t, 5, cfg.Query.DefaultTreeMaxLevel)
	assert.Equal(t, 1800*time.Second, cfg.Cache.DetailTTL)
	assert.Equal(t, 900*time.Second, cfg.Cache.TreeTTL)
}

func TestCatalogConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`catalog:
  query:
    defaultPageSize: 50
    maxPageSize: 100
    defaultTreeMaxLevel: 3
  cache:
    treeTTL: 1m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yml"), body, 0o600))

	holder, err := NewCatalogConfigHolder(Config{CatalogConfigDir: dir}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 50, cfg.Query.DefaultPageSize)
	assert.Equal(t, 100, cfg.Query.MaxPageSize)
	assert.Equal(t, 3, cfg.Query.DefaultTreeMaxLevel)
	assert.Equal(t, time.Minute, cfg.Cache.TreeTTL)
	assert.Equal(t, 1800*time.Second, cfg.Cache.DetailTTL)
}

func TestCatalogConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`catalog:
  query:
    defaultTreeMaxLevel: 42
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yml"), body, 0o600))

	_, err := NewCatalogConfigHolder(Config{CatalogConfigDir: dir}, zap.NewNop())
	assert.Error(t, err)
}
