package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := Default()
	cfg.Detection.DateToleranceDays = 3
	cfg.Detection.AmountTolerance = 0.5
	cfg.Store.Database = "postgres://localhost/doubletake"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("store: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0.8, cfg.Detection.MinScore)
	assert.Zero(t, cfg.Detection.DateToleranceDays)
	assert.True(t, cfg.Git.AutoCommit)
	assert.Empty(t, cfg.Store.Database)
}
