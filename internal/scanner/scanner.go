// Package scanner discovers indexable files under a corpus directory,
// streaming results over a channel as the walk proceeds.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultDenyList mirrors spec.md §4.5 step 2 — substrings of a relative
// path that always exclude it. Callers may override this policy hook.
var DefaultDenyList = []string{
	"digests",
	"drafts",
	"homepage-backup",
	"content/toolkit-threads",
	"content/toolkit-articles",
}

// IgnoreFileName is the optional gitignore-style file consulted in addition
// to DenyList when Options.UseGitignore is set.
const IgnoreFileName = ".memexignore"

// Options configures a Scan.
type Options struct {
	RootDir      string
	Extensions   []string
	DenyList     []string
	UseGitignore bool
}

// Result is one discovered file, or a terminal walk error.
type Result struct {
	Path string // absolute path
	Err  error
}

// Scan walks RootDir recursively and streams absolute paths of files whose
// extension is in Options.Extensions, skipping dot-prefixed path segments,
// deny-listed substrings, and (optionally) .memexignore patterns. The
// returned channel is closed when the walk completes.
func Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	absRoot, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}

	denyList := opts.DenyList
	if denyList == nil {
		denyList = DefaultDenyList
	}

	var matcher *ignore.GitIgnore
	if opts.UseGitignore {
		if m, err := ignore.CompileIgnoreFile(filepath.Join(absRoot, IgnoreFileName)); err == nil {
			matcher = m
		}
	}

	out := make(chan Result, 64)

	go func() {
		defer close(out)

		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				return nil
			}

			relPath, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				return nil
			}
			if relPath == "." {
				return nil
			}

			if hasDotSegment(relPath) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			if containsDenyListedSubstring(relPath, denyList) {
				return nil
			}

			if matcher != nil && matcher.MatchesPath(relPath) {
				return nil
			}

			if _, ok := extSet[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}

			select {
			case out <- Result{Path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if walkErr != nil && walkErr != context.Canceled {
			select {
			case out <- Result{Err: walkErr}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// hasDotSegment reports whether any path segment of rel begins with '.'.
func hasDotSegment(rel string) bool {
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// containsDenyListedSubstring reports whether rel contains any deny-listed
// substring, per spec.md §4.5 step 2.
func containsDenyListedSubstring(rel string, denyList []string) bool {
	normalized := filepath.ToSlash(rel)
	for _, d := range denyList {
		if strings.Contains(normalized, d) {
			return true
		}
	}
	return false
}
