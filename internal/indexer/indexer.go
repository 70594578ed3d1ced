// Package indexer orchestrates the indexing pipeline described in
// spec.md §4.5: scan, diff, chunk, embed, store, and rebuild.
package indexer

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rshah/memex/internal/chunk"
	"github.com/rshah/memex/internal/embed"
	memerrors "github.com/rshah/memex/internal/errors"
	"github.com/rshah/memex/internal/memexcfg"
	"github.com/rshah/memex/internal/scanner"
	"github.com/rshah/memex/internal/store"
	"github.com/rshah/memex/internal/vectorindex"
)

// Dependencies bundles the collaborators an Indexer needs. All fields are
// required.
type Dependencies struct {
	Store       *store.Store
	Embedder    embed.Embedder
	Chunker     *chunk.Chunker
	VectorPaths vectorindex.Paths
}

// Indexer runs indexing passes over a directory.
type Indexer struct {
	deps Dependencies
}

// New constructs an Indexer from its dependencies.
func New(deps Dependencies) *Indexer {
	return &Indexer{deps: deps}
}

// Options configures one indexing pass.
type Options struct {
	RootDir      string
	Extensions   []string
	DenyList     []string
	UseGitignore bool
	Force        bool
}

// Result summarizes the outcome of one indexing pass.
type Result struct {
	RunID          string
	FilesScanned   int
	FilesReindexed int
	FilesOrphaned  int
	ChunksWritten  int
	ChunksSkipped  int
	Duration       time.Duration
}

type pendingChunk struct {
	Content     string
	SourcePath  string
	ChunkIndex  int
	Mtime       float64
	ContentHash string
}

// IndexDirectory executes one full indexing pass per spec.md §4.5.
func (ix *Indexer) IndexDirectory(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	result := Result{RunID: runID}

	currentSet, err := scanDirectory(ctx, opts)
	if err != nil {
		return result, err
	}
	result.FilesScanned = len(currentSet)

	orphaned, err := ix.purgeOrphans(currentSet)
	if err != nil {
		return result, err
	}
	result.FilesOrphaned = orphaned

	paths := make([]string, 0, len(currentSet))
	for p := range currentSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var pending []pendingChunk
	for _, path := range paths {
		needsReindex, mtime, err := ix.needsReindex(path, opts.Force)
		if err != nil {
			slog.Warn("indexer_stat_failed", slog.String("path", path), slog.String("error", err.Error()),
				slog.String("run_id", runID))
			continue
		}
		if !needsReindex {
			continue
		}

		if _, err := ix.deps.Store.DeleteSource(path); err != nil {
			slog.Warn("indexer_delete_source_failed", slog.String("path", path), slog.String("error", err.Error()),
				slog.String("run_id", runID))
			continue
		}

		fragments, err := ix.deps.Chunker.ChunkFile(path)
		if err != nil {
			slog.Warn("indexer_chunk_failed", slog.String("path", path), slog.String("error", err.Error()),
				slog.String("run_id", runID))
			continue
		}

		pending = append(pending, dedupeAndRenumber(fragments, path, mtime)...)
		result.FilesReindexed++
	}

	if len(pending) == 0 {
		result.Duration = time.Since(start)
		slog.Info("indexer_noop", slog.String("run_id", runID), slog.Int("files_scanned", result.FilesScanned))
		return result, nil
	}

	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.Content
	}

	embeddings, err := ix.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return result, err
	}

	for i, p := range pending {
		vec := embeddings[i]
		if vec == nil {
			result.ChunksSkipped++
			slog.Warn("indexer_embed_skip", slog.String("source", p.SourcePath), slog.Int("chunk_index", p.ChunkIndex),
				slog.String("run_id", runID))
			continue
		}

		if _, err := ix.deps.Store.StoreChunk(p.Content, p.SourcePath, p.ChunkIndex, vec, p.ContentHash, p.Mtime); err != nil {
			result.ChunksSkipped++
			slog.Warn("indexer_store_chunk_failed", slog.String("source", p.SourcePath), slog.Int("chunk_index", p.ChunkIndex),
				slog.String("error", err.Error()), slog.String("run_id", runID))
			continue
		}
		result.ChunksWritten++
	}

	rows, err := ix.deps.Store.GetEmbeddingsOnly()
	if err != nil {
		return result, err
	}
	if _, err := vectorindex.Build(rows, ix.deps.VectorPaths); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	slog.Info("indexer_complete", slog.String("run_id", runID), slog.Int("files_reindexed", result.FilesReindexed),
		slog.Int("chunks_written", result.ChunksWritten), slog.Int("chunks_skipped", result.ChunksSkipped))
	return result, nil
}

// scanDirectory drains the Scanner's channel into a set of absolute paths,
// since the orphan-purge step needs the full current set before proceeding.
func scanDirectory(ctx context.Context, opts Options) (map[string]struct{}, error) {
	ch, err := scanner.Scan(ctx, scanner.Options{
		RootDir:      opts.RootDir,
		Extensions:   opts.Extensions,
		DenyList:     opts.DenyList,
		UseGitignore: opts.UseGitignore,
	})
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeFileNotFound, err)
	}

	current := make(map[string]struct{})
	for r := range ch {
		if r.Err != nil {
			slog.Warn("indexer_scan_error", slog.String("error", r.Err.Error()))
			continue
		}
		current[r.Path] = struct{}{}
	}
	return current, nil
}

// purgeOrphans removes every chunk whose source_path is no longer present
// on disk (spec.md §4.5 step 3).
func (ix *Indexer) purgeOrphans(currentSet map[string]struct{}) (int, error) {
	indexedSet, err := ix.deps.Store.GetIndexedFiles()
	if err != nil {
		return 0, err
	}

	purged := 0
	for path := range indexedSet {
		if _, ok := currentSet[path]; ok {
			continue
		}
		if _, err := ix.deps.Store.DeleteSource(path); err != nil {
			slog.Warn("indexer_orphan_purge_failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		purged++
	}
	return purged, nil
}

// needsReindex implements spec.md §4.5 step 4's change-detection rule.
func (ix *Indexer) needsReindex(path string, force bool) (bool, float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, err
	}
	currentMtime := float64(info.ModTime().UnixNano()) / 1e9

	if force {
		return true, currentMtime, nil
	}

	storedMtime, ok, err := ix.deps.Store.GetFileMtime(path)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return true, currentMtime, nil
	}

	if math.Abs(currentMtime-storedMtime) > memexcfg.MtimeEpsilon {
		return true, currentMtime, nil
	}
	return false, currentMtime, nil
}

// dedupeAndRenumber drops fragments whose content_hash repeats within the
// same file (first occurrence wins) and renumbers the survivors 0..K-1,
// per spec.md §4.5 step 5.
func dedupeAndRenumber(fragments []chunk.Fragment, sourcePath string, mtime float64) []pendingChunk {
	seen := make(map[string]struct{}, len(fragments))
	out := make([]pendingChunk, 0, len(fragments))

	idx := 0
	for _, f := range fragments {
		hash := store.ContentHash(f.Content)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		out = append(out, pendingChunk{
			Content:     f.Content,
			SourcePath:  sourcePath,
			ChunkIndex:  idx,
			Mtime:       mtime,
			ContentHash: hash,
		})
		idx++
	}
	return out
}
