package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rshah/memex/internal/config"
	"github.com/rshah/memex/internal/output"
	"github.com/rshah/memex/internal/vectorindex"
)

type statsOutput struct {
	TotalChunks       int  `json:"total_chunks"`
	TotalFiles        int  `json:"total_files"`
	VectorIndexExists bool `json:"vector_index_exists"`
	VectorIndexRows   int  `json:"vector_index_rows"`
}

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and vector index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit stats as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOut bool) error {
	w := output.New(cmd.OutOrStdout())

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

	storeStats, err := st.GetStats()
	if err != nil {
		return err
	}

	paths := vectorPaths(root, cfg)
	out := statsOutput{
		TotalChunks: storeStats.TotalChunks,
		TotalFiles:  storeStats.TotalFiles,
	}
	if vectorindex.Exists(paths) {
		if idx, ok, err := vectorindex.Load(paths, cfg.Embeddings.Dimensions); err == nil && ok {
			out.VectorIndexExists = true
			out.VectorIndexRows = idx.Len()
		}
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w.Successf("chunks: %d", out.TotalChunks)
	w.Successf("files: %d", out.TotalFiles)
	if out.VectorIndexExists {
		w.Successf("vector index: %d vectors", out.VectorIndexRows)
	} else {
		w.Status("vector index: not built")
	}
	return nil
}
