package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Result) []string {
	t.Helper()
	var paths []string
	for r := range ch {
		require.NoError(t, r.Err)
		paths = append(paths, r.Path)
	}
	return paths
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.go", "b")

	ch, err := Scan(context.Background(), Options{RootDir: root, Extensions: []string{".md"}})
	require.NoError(t, err)
	paths := collect(t, ch)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(root, "a.md"), paths[0])
}

func TestScanSkipsDotPrefixedSegments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, ".git/config.md", "b")
	writeFile(t, root, "sub/.hidden/c.md", "c")

	ch, err := Scan(context.Background(), Options{RootDir: root, Extensions: []string{".md"}})
	require.NoError(t, err)
	paths := collect(t, ch)
	require.Len(t, paths, 1)
}

func TestScanAppliesDenyListedSubstrings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes/a.md", "a")
	writeFile(t, root, "drafts/b.md", "b")
	writeFile(t, root, "content/toolkit-threads/c.md", "c")

	ch, err := Scan(context.Background(), Options{RootDir: root, Extensions: []string{".md"}})
	require.NoError(t, err)
	paths := collect(t, ch)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(root, "notes/a.md"), paths[0])
}

func TestScanCustomDenyListOverridesDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "drafts/a.md", "a")
	writeFile(t, root, "scratch/b.md", "b")

	ch, err := Scan(context.Background(), Options{
		RootDir:    root,
		Extensions: []string{".md"},
		DenyList:   []string{"scratch"},
	})
	require.NoError(t, err)
	paths := collect(t, ch)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(root, "drafts/a.md"), paths[0])
}

func TestScanHonorsMemexignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "a")
	writeFile(t, root, "ignored.md", "b")
	writeFile(t, root, IgnoreFileName, "ignored.md\n")

	ch, err := Scan(context.Background(), Options{
		RootDir:      root,
		Extensions:   []string{".md"},
		UseGitignore: true,
	})
	require.NoError(t, err)
	paths := collect(t, ch)
	require.Len(t, paths, 1)
	require.Equal(t, filepath.Join(root, "keep.md"), paths[0])
}

func TestScanContextCancellationStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, root, filepath.Join("d", string(rune('a'+i))+".md"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := Scan(ctx, Options{RootDir: root, Extensions: []string{".md"}})
	require.NoError(t, err)
	for range ch {
		// drain; cancellation may still yield a few already-queued results
	}
}
