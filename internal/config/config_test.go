package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromRepo_DefaultsWhenMissing(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadFromRepo(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(root), cfg.Repository.ID)
	assert.Equal(t, root, cfg.Repository.Path)
	assert.Equal(t, filepath.Join(root, ".index"), cfg.Index.Dir)
	assert.True(t, cfg.Pack.Chunks)
	assert.Equal(t, 32, cfg.Pack.ChunkCount)
}

func TestLoadFromRepo_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	yaml := `repository:
  id: central
  url: https://repo.example.org/maven2
index:
  dir: /var/lib/mavenidx/central
pack:
  chunkCount: 8
  chunks: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(yaml), 0o644))

	cfg, err := LoadFromRepo(root)
	require.NoError(t, err)

	assert.Equal(t, "central", cfg.Repository.ID)
	assert.Equal(t, "https://repo.example.org/maven2", cfg.Repository.URL)
	assert.Equal(t, "/var/lib/mavenidx/central", cfg.Index.Dir)
	assert.Equal(t, 8, cfg.Pack.ChunkCount)
	assert.False(t, cfg.Pack.Chunks)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join("/var/lib/mavenidx/central", "publish"), cfg.Pack.TargetDir)
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	require.NoError(t, os.WriteFile(path, []byte("repository: ["), 0o644))

	_, err := Load(path, root)
	assert.Error(t, err)
}

func TestValidate_RequiresID(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Repository.ID = ""
	assert.Error(t, cfg.Validate())
}

func TestTempDir_EnvOverride(t *testing.T) {
	t.Setenv("INDEXER_TMPDIR", "/custom/tmp")
	assert.Equal(t, "/custom/tmp", TempDir())

	t.Setenv("INDEXER_TMPDIR", "")
	assert.Equal(t, os.TempDir(), TempDir())
}
