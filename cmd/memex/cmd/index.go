package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshah/memex/internal/chunk"
	"github.com/rshah/memex/internal/config"
	"github.com/rshah/memex/internal/indexer"
	"github.com/rshah/memex/internal/output"
	"github.com/rshah/memex/internal/store"
	"github.com/rshah/memex/internal/vectorindex"
)

type indexOptions struct {
	extensions  []string
	force       bool
	rebuildOnly bool
}

func newIndexCmd() *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index a directory of markdown/text files into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "file extensions to index (default from config, e.g. .md,.txt)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "reindex every file regardless of mtime")
	cmd.Flags().BoolVar(&opts.rebuildOnly, "rebuild-only", false, "rebuild the vector index snapshot from the store without rescanning")

	return cmd
}

func runIndex(cmd *cobra.Command, dir string, opts *indexOptions) error {
	w := output.New(cmd.OutOrStdout())

	if !opts.rebuildOnly {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("directory not found: %s", dir)
		}
	}

	root, err := resolveRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	st, err := openStore(root, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	paths := vectorPaths(root, cfg)

	if opts.rebuildOnly {
		return rebuildVectorIndex(w, st, paths)
	}

	extensions := opts.extensions
	if len(extensions) == 0 {
		extensions = cfg.Paths.Extensions
	}

	ix := indexer.New(indexer.Dependencies{
		Store:       st,
		Embedder:    buildEmbedder(cfg),
		Chunker:     chunk.New(chunk.Options{ChunkSize: cfg.Chunking.ChunkSize, Overlap: cfg.Chunking.Overlap}),
		VectorPaths: paths,
	})

	w.Statusf("indexing %s", dir)
	result, err := ix.IndexDirectory(cmd.Context(), indexer.Options{
		RootDir:      dir,
		Extensions:   extensions,
		DenyList:     cfg.Paths.DenyList,
		UseGitignore: cfg.Paths.UseGitignore,
		Force:        opts.force,
	})
	if err != nil {
		w.Errorf("indexing failed: %s", err)
		return err
	}

	w.Successf("scanned %d files, reindexed %d, orphaned %d, wrote %d chunks (%d skipped) in %s",
		result.FilesScanned, result.FilesReindexed, result.FilesOrphaned, result.ChunksWritten, result.ChunksSkipped, result.Duration)

	return rebuildVectorIndex(w, st, paths)
}

func rebuildVectorIndex(w *output.Writer, st *store.Store, paths vectorindex.Paths) error {
	rows, err := st.GetEmbeddingsOnly()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		w.Status("no chunks to index; vector snapshot not rebuilt")
		return nil
	}
	if _, err := vectorindex.Build(rows, paths); err != nil {
		return fmt.Errorf("rebuild vector index: %w", err)
	}
	w.Successf("rebuilt vector index snapshot (%d vectors)", len(rows))
	return nil
}
