// Package store provides the durable persistence layer for chunks, their
// embeddings, and search telemetry. It is the single owner of chunk
// persistence; the Indexer and Retriever hold only transient borrows for the
// duration of one call.
package store

import "time"

// Chunk is a persisted fragment of source text together with its embedding
// and bookkeeping fields.
type Chunk struct {
	ID          int64
	Content     string
	SourcePath  string
	ChunkIndex  int
	Embedding   []float32
	ContentHash string
	FileMtime   float64
	CreatedAt   time.Time
}

// ChunkContent is the rehydrated (content, source, chunk_index) view used by
// the Retriever — deliberately excludes the embedding bytes.
type ChunkContent struct {
	Content    string
	SourcePath string
	ChunkIndex int
}

// EmbeddingRow is the (id, source, chunk_index, embedding) view used to
// rebuild the Vector Index without paying for content bytes.
type EmbeddingRow struct {
	ID         int64
	SourcePath string
	ChunkIndex int
	Embedding  []float32
}

// SearchLogEntry is one append-only telemetry row. Absence of a row never
// affects retrieval.
type SearchLogEntry struct {
	ID           int64
	Query        string
	TopScore     float64
	NumResults   int
	SearchTimeMs int64
	CreatedAt    time.Time
}

// Stats summarizes the current size of the store.
type Stats struct {
	TotalChunks int
	TotalFiles  int
}
