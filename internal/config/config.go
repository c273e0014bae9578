// Package config loads the mavenidx YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the per-repository configuration file.
const FileName = ".mavenidx.yaml"

// Config is the CLI configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Index      IndexConfig      `yaml:"index"`
	Pack       PackConfig       `yaml:"pack"`
	Log        LogConfig        `yaml:"log"`
}

// RepositoryConfig identifies the repository being indexed.
type RepositoryConfig struct {
	// ID is the repository identifier written into the index descriptor.
	ID string `yaml:"id"`
	// Path is the local repository root.
	Path string `yaml:"path"`
	// URL is the public repository URL, if any.
	URL string `yaml:"url"`
	// IndexUpdateURL is where peers download published snapshots from.
	IndexUpdateURL string `yaml:"indexUpdateUrl"`
}

// IndexConfig locates the index directory.
type IndexConfig struct {
	// Dir is the index directory; empty derives <repository>/.index.
	Dir string `yaml:"dir"`
}

// PackConfig sets snapshot publication defaults.
type PackConfig struct {
	// TargetDir receives published files; empty derives <index>/publish.
	TargetDir string `yaml:"targetDir"`
	// Chunks enables incremental chunk publication.
	Chunks bool `yaml:"chunks"`
	// ChunkCount bounds the chain length.
	ChunkCount int `yaml:"chunkCount"`
	// Checksums writes .sha1/.md5 siblings.
	Checksums bool `yaml:"checksums"`
}

// LogConfig sets logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration defaults for a repository root.
func Default(repoPath string) *Config {
	cfg := &Config{}
	cfg.Repository.ID = filepath.Base(repoPath)
	cfg.Repository.Path = repoPath
	cfg.Index.Dir = filepath.Join(repoPath, ".index")
	cfg.Pack.Chunks = true
	cfg.Pack.ChunkCount = 32
	cfg.Pack.Checksums = true
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the configuration file at path over the defaults for
// repoPath. A missing file yields the defaults.
func Load(path, repoPath string) (*Config, error) {
	cfg := Default(repoPath)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Repository.Path == "" {
		cfg.Repository.Path = repoPath
	}
	return cfg, cfg.Validate()
}

// LoadFromRepo loads <repo>/.mavenidx.yaml over the defaults.
func LoadFromRepo(repoPath string) (*Config, error) {
	return Load(filepath.Join(repoPath, FileName), repoPath)
}

// Validate checks invariants and fills derived defaults.
func (c *Config) Validate() error {
	if c.Repository.ID == "" {
		return fmt.Errorf("repository.id must not be empty")
	}
	if c.Repository.Path == "" {
		return fmt.Errorf("repository.path must not be empty")
	}
	if c.Index.Dir == "" {
		c.Index.Dir = filepath.Join(c.Repository.Path, ".index")
	}
	if c.Pack.TargetDir == "" {
		c.Pack.TargetDir = filepath.Join(c.Index.Dir, "publish")
	}
	if c.Pack.ChunkCount <= 0 {
		c.Pack.ChunkCount = 32
	}
	return nil
}

// TempDir returns the scratch directory: the INDEXER_TMPDIR override when
// set, the system default otherwise.
func TempDir() string {
	if dir := os.Getenv("INDEXER_TMPDIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
