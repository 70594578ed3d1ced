package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshah/memex/internal/config"
	"github.com/rshah/memex/internal/memexcfg"
	"github.com/rshah/memex/internal/vectorindex"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestIndexCmd_MissingDirectoryReturnsError(t *testing.T) {
	chdirTemp(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"index", "/does/not/exist"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory not found")
}

func TestIndexCmd_HasExpectedFlags(t *testing.T) {
	root := NewRootCmd()
	indexCmd, _, err := root.Find([]string{"index"})
	require.NoError(t, err)

	assert.NotNil(t, indexCmd.Flags().Lookup("ext"))
	assert.NotNil(t, indexCmd.Flags().Lookup("force"))
	assert.NotNil(t, indexCmd.Flags().Lookup("rebuild-only"))
}

func TestIndexCmd_RebuildOnlyWithEmptyStoreSkipsSnapshot(t *testing.T) {
	chdirTemp(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"index", ".", "--rebuild-only"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no chunks to index")
}

// fakeEmbeddingServer stands in for the local embedding service so indexing
// tests don't depend on a real Ollama-compatible endpoint.
func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		vec := make([]float32, memexcfg.EmbeddingDim)
		vec[0] = 1
		for i, c := range req.Prompt {
			vec[i%memexcfg.EmbeddingDim] += float32(c % 7)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeProjectConfig writes a .memex.yaml at root pointing the Embedding
// Client at embedURL, so resolveRoot/config.Load pick it up without
// depending on a real localhost:11434 service.
func writeProjectConfig(t *testing.T, root, embedURL string) {
	t.Helper()
	cfg := config.New()
	cfg.Embeddings.BaseURL = embedURL
	require.NoError(t, config.Save(root, cfg))
}

// TestIndexCmd_OrphanPurgeRebuildsVectorSnapshot exercises spec.md's named
// scenario S5: index {a.md, b.md}, delete b.md, reindex — the rebuilt
// vector snapshot must reference only the files that still exist on disk.
// This asserts the snapshot itself, not just Store.GetIndexedFiles(), since
// the snapshot rebuild on an orphan-only rerun happens in runIndex's
// unconditional second rebuildVectorIndex call, not inside Indexer.
func TestIndexCmd_OrphanPurgeRebuildsVectorSnapshot(t *testing.T) {
	dir := chdirTemp(t)
	srv := fakeEmbeddingServer(t)
	writeProjectConfig(t, dir, srv.URL)

	corpus := filepath.Join(dir, "notes")
	require.NoError(t, os.MkdirAll(corpus, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(corpus, "a.md"), []byte("# A\n\none"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(corpus, "b.md"), []byte("# B\n\ntwo"), 0644))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"index", corpus})
	require.NoError(t, root.Execute())

	require.NoError(t, os.Remove(filepath.Join(corpus, "b.md")))

	root = NewRootCmd()
	buf = new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"index", corpus})
	require.NoError(t, root.Execute())

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	paths := vectorPaths(dir, cfg)

	idx, ok, err := vectorindex.Load(paths, cfg.Embeddings.Dimensions)
	require.NoError(t, err)
	require.True(t, ok, "vector snapshot should exist after reindex")

	results, err := idx.Search(make([]float32, cfg.Embeddings.Dimensions), idx.Len())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.NotContains(t, res.SourcePath, "b.md")
	}
}

func TestIndexCmd_IndexesEmptyDirectoryWithoutError(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0755))

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"index", filepath.Join(dir, "notes")})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scanned 0 files")
}
