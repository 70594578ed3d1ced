package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rshah/memex/internal/config"
	"github.com/rshah/memex/internal/embed"
	"github.com/rshah/memex/internal/store"
	"github.com/rshah/memex/internal/vectorindex"
)

// resolveRoot finds the project root starting from the current directory,
// falling back to the working directory itself.
func resolveRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		return cwd, nil
	}
	return root, nil
}

// storePath returns the SQLite store path for cfg rooted at root.
func storePath(root string, cfg *config.Config) string {
	dataDir := cfg.Store.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}
	return filepath.Join(dataDir, "memex.db")
}

// openStore opens the Store at cfg's configured path, creating the data
// directory if needed.
func openStore(root string, cfg *config.Config) (*store.Store, error) {
	return store.Open(storePath(root, cfg))
}

// buildEmbedder constructs the HTTP Embedding Client from cfg.
func buildEmbedder(cfg *config.Config) embed.Embedder {
	return embed.NewHTTPEmbedder(embed.Config{
		Host:       cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		Timeout:    time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
	})
}

// vectorPaths derives the Vector Index snapshot paths for cfg's store.
func vectorPaths(root string, cfg *config.Config) vectorindex.Paths {
	return vectorindex.DefaultPaths(storePath(root, cfg))
}

// defaultTopK returns cfg's configured default top_k, falling back to the
// spec default of 5 if unset.
func defaultTopK(cfg *config.Config) int {
	if cfg.Retrieval.DefaultTopK > 0 {
		return cfg.Retrieval.DefaultTopK
	}
	return 5
}
