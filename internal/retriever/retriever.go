// Package retriever implements the query pipeline described in spec.md
// §4.6: cache lookup, query embedding, ANN (or brute-force) search,
// rehydration, recency weighting, and MMR diversification.
package retriever

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rshah/memex/internal/embed"
	memerrors "github.com/rshah/memex/internal/errors"
	"github.com/rshah/memex/internal/memexcfg"
	"github.com/rshah/memex/internal/store"
	"github.com/rshah/memex/internal/vectorindex"
)

// Result is one ranked hit returned to the caller.
type Result struct {
	ID         int64
	Content    string
	SourcePath string
	ChunkIndex int
	Similarity float32
}

// Dependencies bundles the collaborators a Retriever needs.
type Dependencies struct {
	Store       *store.Store
	Embedder    embed.Embedder
	VectorPaths vectorindex.Paths
}

type cacheEntry struct {
	results    []Result
	insertedAt time.Time
}

// Retriever answers Search queries against the indexed corpus.
type Retriever struct {
	deps  Dependencies
	cache *lru.Cache[string, cacheEntry]
}

// New constructs a Retriever with a 128-entry query cache (spec.md §4.6).
func New(deps Dependencies) (*Retriever, error) {
	cache, err := lru.New[string, cacheEntry](memexcfg.CacheMaxEntries)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeInternal, err)
	}
	return &Retriever{deps: deps, cache: cache}, nil
}

// candidate carries an unrehydrated or rehydrated hit through scoring.
type candidate struct {
	id         int64
	content    string
	sourcePath string
	chunkIndex int
	score      float32
}

// Search runs the full retrieval pipeline for query and returns up to topK
// diversified results.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	start := time.Now()

	if topK <= 0 {
		return nil, memerrors.New(memerrors.ErrCodeInvalidQuery, "top_k must be positive", nil)
	}

	stats, err := r.deps.Store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return []Result{}, nil
	}

	key := cacheKey(query, topK)
	if entry, ok := r.cache.Get(key); ok {
		if time.Since(entry.insertedAt) < memexcfg.CacheTTL {
			return entry.results, nil
		}
		r.cache.Remove(key)
	}

	queryVec, err := r.deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := r.gatherCandidates(queryVec, topK)
	if err != nil {
		return nil, err
	}

	applyRecencyWeighting(candidates)
	selected := mmrSelect(candidates, topK)

	results := toResults(selected)
	r.cache.Add(key, cacheEntry{results: results, insertedAt: time.Now()})

	elapsed := time.Since(start)
	var topScore float64
	if len(results) > 0 {
		topScore = float64(results[0].Similarity)
	}
	r.deps.Store.LogSearch(query, topScore, len(results), elapsed.Milliseconds())

	return results, nil
}

// gatherCandidates runs ANN search against the vector snapshot when one
// exists, falling back to a brute-force scan of the store otherwise
// (spec.md §4.6).
func (r *Retriever) gatherCandidates(queryVec []float32, topK int) ([]candidate, error) {
	if vectorindex.Exists(r.deps.VectorPaths) {
		idx, ok, err := vectorindex.Load(r.deps.VectorPaths, r.deps.Embedder.Dimensions())
		if err != nil {
			return nil, err
		}
		if ok && idx.Len() > 0 {
			hits, err := idx.Search(queryVec, topK)
			if err != nil {
				return nil, err
			}
			return r.rehydrate(hits)
		}
	}
	return r.bruteForce(queryVec, topK)
}

// rehydrate fills in content for ANN hits, synthesizing a placeholder for
// any id absent from the store (e.g. deleted after the snapshot was built).
func (r *Retriever) rehydrate(hits []vectorindex.Result) ([]candidate, error) {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	contents, err := r.deps.Store.GetChunksByIDs(ids)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, len(hits))
	for i, h := range hits {
		cc, found := contents[h.ID]
		if !found {
			out[i] = candidate{
				id:         h.ID,
				content:    "[content unavailable]",
				sourcePath: h.SourcePath,
				chunkIndex: h.ChunkIndex,
				score:      h.Score,
			}
			continue
		}
		out[i] = candidate{
			id:         h.ID,
			content:    cc.Content,
			sourcePath: cc.SourcePath,
			chunkIndex: cc.ChunkIndex,
			score:      h.Score,
		}
	}
	return out, nil
}

// bruteForce streams every stored embedding, scores it by cosine similarity
// against queryVec, and rehydrates content for the top 2*topK survivors.
// Used when no vector snapshot exists yet (spec.md §4.6).
func (r *Retriever) bruteForce(queryVec []float32, topK int) ([]candidate, error) {
	rows, err := r.deps.Store.GetEmbeddingsOnly()
	if err != nil {
		return nil, err
	}

	type scored struct {
		id         int64
		sourcePath string
		chunkIndex int
		score      float32
	}

	all := make([]scored, 0, len(rows))
	for _, row := range rows {
		if len(row.Embedding) != len(queryVec) {
			continue
		}
		all = append(all, scored{
			id:         row.ID,
			sourcePath: row.SourcePath,
			chunkIndex: row.ChunkIndex,
			score:      cosineSimilarity(queryVec, row.Embedding),
		})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	limit := topK * memexcfg.OverfetchFactor
	if limit > len(all) {
		limit = len(all)
	}
	all = all[:limit]

	ids := make([]int64, len(all))
	for i, s := range all {
		ids[i] = s.id
	}
	contents, err := r.deps.Store.GetChunksByIDs(ids)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, len(all))
	for i, s := range all {
		cc, found := contents[s.id]
		content := cc.Content
		if !found {
			content = "[content unavailable]"
		}
		out[i] = candidate{
			id:         s.id,
			content:    content,
			sourcePath: s.sourcePath,
			chunkIndex: s.chunkIndex,
			score:      s.score,
		}
	}
	return out, nil
}

// applyRecencyWeighting adds a bonus to each candidate's score based on the
// on-disk mtime of its source file (spec.md §4.6). A file that can no
// longer be stat'd contributes no bonus.
func applyRecencyWeighting(candidates []candidate) {
	for i := range candidates {
		info, err := os.Stat(candidates[i].sourcePath)
		if err != nil {
			continue
		}
		age := time.Since(info.ModTime())
		switch {
		case age < 24*time.Hour:
			candidates[i].score += memexcfg.RecencyBonusDay
		case age < 7*24*time.Hour:
			candidates[i].score += memexcfg.RecencyBonusWeek
		case age < 30*24*time.Hour:
			candidates[i].score += memexcfg.RecencyBonusMonth
		}
	}
}

func toResults(candidates []candidate) []Result {
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{
			ID:         c.id,
			Content:    c.content,
			SourcePath: c.sourcePath,
			ChunkIndex: c.chunkIndex,
			Similarity: c.score,
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func cacheKey(query string, topK int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", query, topK)))
	return hex.EncodeToString(sum[:])
}
