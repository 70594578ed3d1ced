// Package memexcfg centralizes the tuning constants shared across the
// indexing and retrieval pipelines so they are defined exactly once.
package memexcfg

import "time"

const (
	// EmbeddingDim is the dimension of every persisted and queried vector.
	EmbeddingDim = 768

	// ChunkSize is the default maximum chunk length in code points.
	ChunkSize = 500

	// ChunkOverlap is the number of trailing whitespace-separated tokens
	// carried into the next chunk when paragraph-packing splits a section.
	ChunkOverlap = 50

	// EmbedBatchSize is the internal pipelining batch size for EmbedBatch.
	EmbedBatchSize = 32

	// EmbedTimeout bounds a single embedding HTTP call.
	EmbedTimeout = 30 * time.Second

	// MMRLambda trades relevance against diversity in MMR reranking.
	MMRLambda = 0.7

	// SourceRepeatPenalty is subtracted (via MMR) for a candidate whose
	// source_path is already represented in the selected set.
	SourceRepeatPenalty = 0.15

	// OverfetchFactor controls how many ANN candidates are pulled per top_k.
	OverfetchFactor = 2

	// CacheMaxEntries bounds the retriever's query-result LRU.
	CacheMaxEntries = 128

	// CacheTTL is how long a cached query result remains valid.
	CacheTTL = 300 * time.Second

	// RecencyBonusDay is added when a source file was modified under 1 day ago.
	RecencyBonusDay = 0.03
	// RecencyBonusWeek is added when modified under 7 days ago.
	RecencyBonusWeek = 0.02
	// RecencyBonusMonth is added when modified under 30 days ago.
	RecencyBonusMonth = 0.01

	// MtimeEpsilon is the minimum mtime delta (seconds) that counts as a change.
	MtimeEpsilon = 0.01
)
