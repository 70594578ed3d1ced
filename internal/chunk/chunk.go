// Package chunk splits a markdown/text file into structure-aware,
// size-bounded, context-prefixed fragments ready for embedding.
package chunk

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rshah/memex/internal/memexcfg"
)

// Fragment is one ordered, context-prefixed piece of a chunked file.
type Fragment struct {
	Content    string
	ChunkIndex int
	SourcePath string
}

// Options configures chunk size and overlap.
type Options struct {
	// ChunkSize is the maximum chunk length in code points.
	ChunkSize int
	// Overlap is the number of trailing whitespace-separated tokens carried
	// into the next paragraph-packed chunk.
	Overlap int
}

// DefaultOptions returns the spec-mandated chunk size and overlap.
func DefaultOptions() Options {
	return Options{
		ChunkSize: memexcfg.ChunkSize,
		Overlap:   memexcfg.ChunkOverlap,
	}
}

// Chunker splits files into Fragments.
type Chunker struct {
	opts Options
}

// New creates a Chunker. A zero-value Options falls back to DefaultOptions.
func New(opts Options) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = memexcfg.ChunkSize
	}
	if opts.Overlap <= 0 {
		opts.Overlap = memexcfg.ChunkOverlap
	}
	return &Chunker{opts: opts}
}

var headerLineRe = regexp.MustCompile(`^#{1,3}\s`)
var topHeadingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
var runawayNewlinesRe = regexp.MustCompile(`\n{3,}`)

// ChunkFile reads path as UTF-8 and returns its ordered fragments. A missing
// or unreadable file is not a hard failure: it is logged and an empty slice
// is returned, matching spec.md §4.2's edge-case handling.
func (c *Chunker) ChunkFile(path string) ([]Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("chunk_file_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return nil, nil
	}

	if !utf8.Valid(data) {
		slog.Warn("chunk_file_invalid_utf8", slog.String("path", path))
		return nil, nil
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	content = runawayNewlinesRe.ReplaceAllString(content, "\n\n")
	prefix := contextPrefix(path, content)

	var bodies []string
	for _, section := range splitSections(content) {
		if utf8.RuneCountInString(section) <= c.opts.ChunkSize {
			if trimmed := strings.TrimSpace(section); trimmed != "" {
				bodies = append(bodies, trimmed)
			}
			continue
		}
		for _, piece := range paragraphPack(section, c.opts.ChunkSize, c.opts.Overlap) {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				bodies = append(bodies, trimmed)
			}
		}
	}

	fragments := make([]Fragment, 0, len(bodies))
	for i, body := range bodies {
		fragments = append(fragments, Fragment{
			Content:    prefix + body,
			ChunkIndex: i,
			SourcePath: path,
		})
	}

	return fragments, nil
}

// splitSections splits content immediately before any line matching
// ^#{1,3}\s, keeping the header attached to the section it introduces. The
// region before the first such header, if any, is its own (possibly empty)
// section.
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")
	var sections []string
	var current []string

	for _, line := range lines {
		if headerLineRe.MatchString(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	return sections
}

// paragraphPack greedily accumulates \n\n-separated paragraphs into chunks
// bounded by chunkSize code points, carrying the last `overlap`
// whitespace-separated tokens of a chunk into the next one for continuity.
func paragraphPack(section string, chunkSize, overlap int) []string {
	paragraphs := strings.Split(section, "\n\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}
	}

	for _, p := range paragraphs {
		if current.Len() == 0 {
			current.WriteString(p)
			continue
		}

		candidate := utf8.RuneCountInString(current.String()) + 2 + utf8.RuneCountInString(p)
		if candidate > chunkSize {
			flush()
			overlapText := lastTokens(current.String(), overlap)
			current.Reset()
			if overlapText != "" {
				current.WriteString(overlapText)
				current.WriteString("\n\n")
			}
			current.WriteString(p)
			continue
		}

		current.WriteString("\n\n")
		current.WriteString(p)
	}
	flush()

	return chunks
}

// lastTokens returns the last n whitespace-separated tokens of s, joined by
// single spaces.
func lastTokens(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[len(fields)-n:], " ")
}

// contextPrefix derives the compact context string prepended to every chunk
// of a file: "[<stem>] <heading>: " when a top-level "# " heading exists,
// otherwise "[<stem>]: ".
func contextPrefix(path, content string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")

	if m := topHeadingRe.FindStringSubmatch(content); m != nil {
		heading := strings.TrimSpace(m[1])
		return fmt.Sprintf("[%s] %s: ", stem, heading)
	}
	return fmt.Sprintf("[%s]: ", stem)
}
