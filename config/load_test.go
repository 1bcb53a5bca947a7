package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crud.yaml")
	content := `
filter:
  max_parameters: 7
paging:
  max_page_size: 50
batch:
  chunk_size: 2
database:
  driver: postgres
  dsn: "host=localhost"
  conn_max_lifetime: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CRUDGUARD_BATCH_WORKERS", "3")
	t.Setenv("CRUDGUARD_DATABASE_TRACE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Filter.MaxParameters)
	assert.Equal(t, 50, cfg.Paging.MaxPageSize)
	assert.Equal(t, DefaultPageSize, cfg.Paging.DefaultPageSize)
	assert.Equal(t, 2, cfg.Batch.ChunkSize)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Database.Trace)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnMaxLifetime)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sort.MaxFields = 0
	cfg.Batch.Workers = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sort.max_fields")
	assert.Contains(t, err.Error(), "batch.workers")

	cfg = Default()
	cfg.Paging.DefaultPageSize = 2000
	assert.Error(t, cfg.Validate())
}
