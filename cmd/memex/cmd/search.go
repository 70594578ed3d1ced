package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshah/memex/internal/config"
	"github.com/rshah/memex/internal/output"
	"github.com/rshah/memex/internal/retriever"
)

type searchOptions struct {
	topK int
	json bool
}

// searchHit is the memex search --json output schema: [{file, line, score, text}, ...],
// where line is the chunk's index within its source file.
type searchHit struct {
	File  string  `json:"file"`
	Line  int     `json:"line"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the local store for chunks relevant to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.topK, "top", 0, "number of results to return (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "emit results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts *searchOptions) error {
	w := output.New(cmd.OutOrStderr())

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

	topK := opts.topK
	if topK <= 0 {
		topK = defaultTopK(cfg)
	}

	r, err := retriever.New(retriever.Dependencies{
		Store:       st,
		Embedder:    buildEmbedder(cfg),
		VectorPaths: vectorPaths(root, cfg),
	})
	if err != nil {
		return err
	}

	results, err := r.Search(cmd.Context(), query, topK)
	if err != nil {
		w.Errorf("search failed: %s", err)
		return nil
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			File:  res.SourcePath,
			Line:  res.ChunkIndex,
			Score: res.Similarity,
			Text:  res.Content,
		})
	}

	if opts.json {
		return printSearchJSON(cmd, hits)
	}
	printSearchText(cmd, w, hits)
	return nil
}

func printSearchJSON(cmd *cobra.Command, hits []searchHit) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(hits)
}

func printSearchText(cmd *cobra.Command, w *output.Writer, hits []searchHit) {
	if len(hits) == 0 {
		w.Status("no results")
		return
	}
	for i, h := range hits {
		w.Successf("%d. %s:%d (score %.3f)", i+1, h.File, h.Line, h.Score)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), snippet(h.Text))
		w.Newline()
	}
}

func snippet(text string) string {
	const maxLen = 200
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
