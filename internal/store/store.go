package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	memerrors "github.com/rshah/memex/internal/errors"
	"github.com/rshah/memex/internal/memexcfg"
)

// Store is the SQLite-backed persistence layer for chunks and search
// telemetry described in spec.md §4.3. It holds a cross-process exclusive
// lock for its lifetime, since the store is assumed to be written by one
// process at a time (spec.md §5).
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open creates (if needed) and opens the SQLite database at path, acquiring
// an exclusive cross-process write lock and ensuring the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, memerrors.New(memerrors.ErrCodeStoreError, "store path must not be empty", nil)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	if !locked {
		return nil, memerrors.New(memerrors.ErrCodeStoreError, "store is already open by another process", nil)
	}

	if err := checkIntegrity(path); err != nil {
		slog.Warn("store_integrity_check_failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}

	return &Store{db: db, path: path, lock: lock}, nil
}

// checkIntegrity runs PRAGMA integrity_check against an existing database
// file. A database that does not exist yet is trivially valid.
func checkIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Close releases the database handle and the cross-process write lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return memerrors.Wrap(memerrors.ErrCodeStoreError, errs[0])
	}
	return nil
}

// StoreChunk upserts a chunk on (source_path, chunk_index), packing the
// embedding as little-endian float32 bytes. If contentHash is empty it is
// computed from content. Embeddings whose length does not equal
// memexcfg.EmbeddingDim are rejected and not persisted.
func (s *Store) StoreChunk(content, source string, idx int, embedding []float32, contentHash string, mtime float64) (int64, error) {
	if len(embedding) != memexcfg.EmbeddingDim {
		return 0, memerrors.New(memerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, want %d", len(embedding), memexcfg.EmbeddingDim), nil).
			WithDetail("source_path", source)
	}

	if contentHash == "" {
		contentHash = ContentHash(content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	packed := packEmbedding(embedding)

	const stmt = `
		INSERT INTO chunks (content, source_path, chunk_index, embedding, content_hash, file_mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path, chunk_index) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			content_hash = excluded.content_hash,
			file_mtime = excluded.file_mtime
	`
	if _, err := s.db.Exec(stmt, content, source, idx, packed, contentHash, mtime); err != nil {
		return 0, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}

	// LastInsertId is not updated when the upsert takes the DO UPDATE branch,
	// so the row's id is always looked up by its unique key.
	var id int64
	row := s.db.QueryRow(`SELECT id FROM chunks WHERE source_path = ? AND chunk_index = ?`, source, idx)
	if err := row.Scan(&id); err != nil {
		return 0, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}

	return id, nil
}

// ContentHash returns the lowercase-hex MD5 digest of content, used for
// in-file deduplication.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DeleteSource removes all chunks for source and returns the number removed.
func (s *Store) DeleteSource(source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM chunks WHERE source_path = ?`, source)
	if err != nil {
		return 0, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	return res.RowsAffected()
}

// GetFileMtime reads the file_mtime shared by every chunk of source. The
// second return value is false if source has no chunks.
func (s *Store) GetFileMtime(source string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mtime sql.NullFloat64
	row := s.db.QueryRow(`SELECT file_mtime FROM chunks WHERE source_path = ? LIMIT 1`, source)
	if err := row.Scan(&mtime); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	return mtime.Float64, true, nil
}

// GetIndexedFiles returns the distinct set of source paths with at least
// one chunk.
func (s *Store) GetIndexedFiles() (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT DISTINCT source_path FROM chunks`)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
		}
		out[path] = struct{}{}
	}
	return out, rows.Err()
}

// GetEmbeddingsOnly returns every chunk's (id, source, chunk_index,
// embedding), used to rebuild the Vector Index without paying for content
// bytes.
func (s *Store) GetEmbeddingsOnly() ([]EmbeddingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, source_path, chunk_index, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var blob []byte
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.ChunkIndex, &blob); err != nil {
			return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
		}
		vec, err := unpackEmbedding(blob)
		if err != nil {
			return nil, err
		}
		r.Embedding = vec
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetChunksByIDs rehydrates (content, source, chunk_index) for each id.
func (s *Store) GetChunksByIDs(ids []int64) (map[int64]ChunkContent, error) {
	out := make(map[int64]ChunkContent, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, content, source_path, chunk_index FROM chunks WHERE id IN (%s)`, placeholders)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var cc ChunkContent
		if err := rows.Scan(&id, &cc.Content, &cc.SourcePath, &cc.ChunkIndex); err != nil {
			return nil, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
		}
		out[id] = cc
	}
	return out, rows.Err()
}

// LogSearch appends a search telemetry row. It never returns an error to
// the caller — failures are logged and swallowed, per spec.md §7.
func (s *Store) LogSearch(query string, topScore float64, numResults int, elapsedMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const stmt = `INSERT INTO search_log (query, top_score, num_results, search_time_ms) VALUES (?, ?, ?, ?)`
	if _, err := s.db.Exec(stmt, query, topScore, numResults, elapsedMs); err != nil {
		slog.Warn("search_log_insert_failed", slog.String("error", err.Error()))
	}
}

// GetStats returns the total chunk and distinct file counts.
func (s *Store) GetStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	row := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT source_path) FROM chunks`)
	if err := row.Scan(&stats.TotalChunks, &stats.TotalFiles); err != nil {
		return Stats{}, memerrors.Wrap(memerrors.ErrCodeStoreError, err)
	}
	return stats, nil
}
