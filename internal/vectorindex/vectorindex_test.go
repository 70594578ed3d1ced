package vectorindex

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rshah/memex/internal/memexcfg"
	"github.com/rshah/memex/internal/store"
)

func unitVectorWithSpike(dim, spikeAt int) []float32 {
	v := make([]float32, dim)
	v[spikeAt] = 1
	return v
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		VectorPath: filepath.Join(dir, "vectors.bin"),
		MetaPath:   filepath.Join(dir, "vectors.meta.json"),
	}
}

func TestBuildThenLoadRoundTrips(t *testing.T) {
	p := testPaths(t)
	rows := []store.EmbeddingRow{
		{ID: 1, SourcePath: "/a.md", ChunkIndex: 0, Embedding: unitVectorWithSpike(memexcfg.EmbeddingDim, 0)},
		{ID: 2, SourcePath: "/b.md", ChunkIndex: 0, Embedding: unitVectorWithSpike(memexcfg.EmbeddingDim, 1)},
	}

	built, err := Build(rows, p)
	require.NoError(t, err)
	require.Equal(t, 2, built.Len())

	require.True(t, Exists(p))

	loaded, ok, err := Load(p, memexcfg.EmbeddingDim)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, loaded.Len())
}

func TestLoadReturnsFalseWhenMissing(t *testing.T) {
	p := testPaths(t)
	idx, ok, err := Load(p, memexcfg.EmbeddingDim)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, idx)
}

func TestBuildNormalizesToUnitLength(t *testing.T) {
	p := testPaths(t)
	raw := make([]float32, memexcfg.EmbeddingDim)
	raw[0] = 3
	raw[1] = 4 // magnitude 5

	built, err := Build([]store.EmbeddingRow{{ID: 1, SourcePath: "/a.md", ChunkIndex: 0, Embedding: raw}}, p)
	require.NoError(t, err)

	var sumSquares float64
	for _, f := range built.vectors[0] {
		sumSquares += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSquares)
	require.InDelta(t, 1.0, norm, 1e-5)
}

func TestBuildSkipsRowsWithWrongDimension(t *testing.T) {
	p := testPaths(t)
	rows := []store.EmbeddingRow{
		{ID: 1, SourcePath: "/a.md", ChunkIndex: 0, Embedding: []float32{1, 2, 3}},
		{ID: 2, SourcePath: "/b.md", ChunkIndex: 0, Embedding: unitVectorWithSpike(memexcfg.EmbeddingDim, 0)},
	}

	built, err := Build(rows, p)
	require.NoError(t, err)
	require.Equal(t, 1, built.Len())
}

func TestSearchOverfetchesByTwoAndOrdersByScore(t *testing.T) {
	p := testPaths(t)
	dim := memexcfg.EmbeddingDim

	var rows []store.EmbeddingRow
	for i := 0; i < 5; i++ {
		rows = append(rows, store.EmbeddingRow{
			ID:         int64(i + 1),
			SourcePath: "/a.md",
			ChunkIndex: i,
			Embedding:  unitVectorWithSpike(dim, i%dim),
		})
	}

	idx, err := Build(rows, p)
	require.NoError(t, err)

	query := unitVectorWithSpike(dim, 0)
	results, err := idx.Search(query, 2)
	require.NoError(t, err)
	require.Len(t, results, 4) // min(2*2, 5)

	require.Equal(t, int64(1), results[0].ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-5)

	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchRejectsWrongQueryDimension(t *testing.T) {
	p := testPaths(t)
	idx, err := Build([]store.EmbeddingRow{{ID: 1, SourcePath: "/a.md", ChunkIndex: 0, Embedding: unitVectorWithSpike(memexcfg.EmbeddingDim, 0)}}, p)
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 2, 3}, 1)
	require.Error(t, err)
}

func TestSearchOnEmptyIndexReturnsNil(t *testing.T) {
	p := testPaths(t)
	idx, err := Build(nil, p)
	require.NoError(t, err)

	results, err := idx.Search(unitVectorWithSpike(memexcfg.EmbeddingDim, 0), 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
