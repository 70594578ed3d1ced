package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEmbeddingServer(t *testing.T, dims int, fail map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if fail[req.Prompt] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(len(req.Prompt)) / float32(i+1)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: vec})
	}))
}

func TestEmbedReturnsVectorOfConfiguredDimensions(t *testing.T) {
	srv := fakeEmbeddingServer(t, 8, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(Config{Host: srv.URL, Dimensions: 8})
	defer e.Close()

	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, vec, 8)
}

func TestEmbedBlankTextReturnsZeroVectorWithoutCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(Config{Host: srv.URL, Dimensions: 4})
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Equal(t, make([]float32, 4), vec)
	require.Equal(t, 0, calls)
}

func TestEmbedBatchPreservesOrderAndNilsFailedSlots(t *testing.T) {
	srv := fakeEmbeddingServer(t, 4, map[string]bool{"bad": true})
	defer srv.Close()

	e := NewHTTPEmbedder(Config{Host: srv.URL, Dimensions: 4, BatchSize: 2, MaxConcurrency: 2})
	defer e.Close()

	texts := []string{"one", "bad", "three"}
	results, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NotNil(t, results[0])
	require.Nil(t, results[1])
	require.NotNil(t, results[2])
}

func TestEmbedBatchEmptyInputReturnsEmptySlice(t *testing.T) {
	e := NewHTTPEmbedder(Config{Host: "http://unused.invalid"})
	defer e.Close()

	results, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestEmbedBatchSpansMultipleBatchesOfConfiguredSize(t *testing.T) {
	srv := fakeEmbeddingServer(t, 4, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(Config{Host: srv.URL, Dimensions: 4, BatchSize: 2, MaxConcurrency: 2})
	defer e.Close()

	texts := []string{"a", "b", "c", "d", "e"}
	results, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		require.NotNil(t, r)
	}
}

func TestEmbedUnreachableHostReturnsError(t *testing.T) {
	e := NewHTTPEmbedder(Config{Host: "http://127.0.0.1:1", Dimensions: 4})
	defer e.Close()

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	e := NewHTTPEmbedder(DefaultConfig())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}
