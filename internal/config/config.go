// Package config loads memex's project configuration: a YAML file at the
// project root plus an optional .env for embedding-service credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rshah/memex/internal/memexcfg"
)

// ConfigFileName is the project-local config file name.
const ConfigFileName = ".memex.yaml"

// Config is memex's complete runtime configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Store      StoreConfig      `yaml:"store"`
}

// PathsConfig configures which files the Indexer considers.
type PathsConfig struct {
	Extensions []string `yaml:"extensions"`
	// DenyList holds substrings; a relative path containing any of these is
	// skipped (spec.md §4.5 step 2). This is the policy hook the Indexer
	// exposes rather than hardcoding.
	DenyList []string `yaml:"deny_list"`
	// UseGitignore additionally applies .gitignore-style patterns from the
	// .memexignore file at the root of the indexed directory.
	UseGitignore bool `yaml:"use_gitignore"`
}

// ChunkingConfig configures the Chunker.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbeddingsConfig configures the Embedding Client.
type EmbeddingsConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	// TimeoutSeconds bounds a single embedding HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// AuthToken is populated from MEMEX_EMBED_TOKEN (or a .env file), never
	// written back to the YAML file.
	AuthToken string `yaml:"-"`
}

// RetrievalConfig holds retrieval settings. Only DefaultTopK is read (by the
// search command); the Retriever takes MMR lambda, cache size and cache TTL
// from the memexcfg constants, not from these fields.
type RetrievalConfig struct {
	DefaultTopK  int     `yaml:"default_top_k"`
	MMRLambda    float64 `yaml:"mmr_lambda"`
	CacheSize    int     `yaml:"cache_size"`
	CacheTTLSecs int     `yaml:"cache_ttl_seconds"`
}

// StoreConfig configures the persistent Store.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
	// SQLiteCacheMB is not applied to the SQLite connection.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb"`
}

// defaultExtensions are the file extensions indexed when none are configured.
var defaultExtensions = []string{".md", ".markdown", ".txt"}

// defaultDenyList mirrors spec.md §4.5 step 2.
var defaultDenyList = []string{
	"digests",
	"drafts",
	"homepage-backup",
	"content/toolkit-threads",
	"content/toolkit-articles",
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Extensions:   append([]string(nil), defaultExtensions...),
			DenyList:     append([]string(nil), defaultDenyList...),
			UseGitignore: true,
		},
		Chunking: ChunkingConfig{
			ChunkSize: memexcfg.ChunkSize,
			Overlap:   memexcfg.ChunkOverlap,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "embeddinggemma",
			Dimensions:     memexcfg.EmbeddingDim,
			BatchSize:      memexcfg.EmbedBatchSize,
			TimeoutSeconds: int(memexcfg.EmbedTimeout.Seconds()),
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:  5,
			MMRLambda:    memexcfg.MMRLambda,
			CacheSize:    memexcfg.CacheMaxEntries,
			CacheTTLSecs: int(memexcfg.CacheTTL.Seconds()),
		},
		Store: StoreConfig{
			DataDir:       ".memex",
			SQLiteCacheMB: 64,
		},
	}
}

// Load reads <root>/.memex.yaml (if present), applies defaults for any
// unset field, loads a sibling .env (if present) for embedding credentials,
// and applies MEMEX_* environment overrides.
func Load(root string) (*Config, error) {
	cfg := New()

	path := filepath.Join(root, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyDefaultsWhereZero(cfg)

	// .env is optional; godotenv.Load returns an error for a missing file,
	// so it is only called when the file exists and its errors are surfaced.
	envPath := filepath.Join(root, ".env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("parse %s: %w", envPath, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaultsWhereZero(cfg *Config) {
	def := New()
	if len(cfg.Paths.Extensions) == 0 {
		cfg.Paths.Extensions = def.Paths.Extensions
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = def.Chunking.ChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = def.Chunking.Overlap
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = def.Embeddings.BaseURL
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = def.Embeddings.Model
	}
	if cfg.Embeddings.Dimensions == 0 {
		cfg.Embeddings.Dimensions = def.Embeddings.Dimensions
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = def.Embeddings.BatchSize
	}
	if cfg.Embeddings.TimeoutSeconds == 0 {
		cfg.Embeddings.TimeoutSeconds = def.Embeddings.TimeoutSeconds
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = def.Retrieval.DefaultTopK
	}
	if cfg.Retrieval.MMRLambda == 0 {
		cfg.Retrieval.MMRLambda = def.Retrieval.MMRLambda
	}
	if cfg.Retrieval.CacheSize == 0 {
		cfg.Retrieval.CacheSize = def.Retrieval.CacheSize
	}
	if cfg.Retrieval.CacheTTLSecs == 0 {
		cfg.Retrieval.CacheTTLSecs = def.Retrieval.CacheTTLSecs
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = def.Store.DataDir
	}
	if cfg.Store.SQLiteCacheMB == 0 {
		cfg.Store.SQLiteCacheMB = def.Store.SQLiteCacheMB
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMEX_EMBED_BASE_URL"); v != "" {
		cfg.Embeddings.BaseURL = v
	}
	if v := os.Getenv("MEMEX_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("MEMEX_EMBED_TOKEN"); v != "" {
		cfg.Embeddings.AuthToken = v
	}
	if v := os.Getenv("MEMEX_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.Dimensions = n
		}
	}
}

// FindProjectRoot walks upward from start looking for .memex.yaml or a .git
// directory, returning start itself if neither is found.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return start, nil
}

// Save writes cfg to <root>/.memex.yaml.
func Save(root string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
