package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/vectorstore/ann"
	"github.com/mforrest/repoctx/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist.
	ErrNotFound = errors.New("not found")
)

// oversample is the candidate multiplier when serving a filtered query
// from the approximate index; survivors of the SQL filter are re-ranked
// exactly and topped up with a full scan if too few remain.
const oversample = 4

// Row is one stored chunk with its embedding. ID is
// "filepath:start_line", unique per (repo, branch) deployment table.
type Row struct {
	ID        string
	Content   string
	Vector    []float32
	Filepath  string
	StartLine int32
	EndLine   int32
	Language  string
	Repo      string
	Branch    string
}

// Filters narrows a search. Zero values mean no constraint; Directories
// are OR-combined path prefixes.
type Filters struct {
	Repo        string
	Branch      string
	Directories []string
	Language    string
}

// Result is one search hit with its cosine similarity to the query.
type Result struct {
	Row   Row
	Score float64
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	Rows          int
	Repos         int
	IndexStrategy string
	SizeMB        float64
}

// Store persists embedded chunks and serves filtered similarity search.
type Store interface {
	// Add appends rows in a single transaction and rebuilds the
	// approximate index. Vectors must match the store dimension.
	Add(ctx context.Context, rows []Row) error

	// Search returns up to limit rows most similar to query, best
	// first, honoring filters. An empty result is valid.
	Search(ctx context.Context, query []float32, limit int, f Filters) ([]Result, error)

	// Clear removes every row unconditionally.
	Clear(ctx context.Context) error

	// Count returns the total row count.
	Count(ctx context.Context) (int, error)

	// Stats returns store statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Dimension returns the vector length this store accepts.
	Dimension() int

	Close() error
}

// SQLiteStore implements Store over a single SQLite table. An in-memory
// ann.Index accelerates queries; it is advisory, and the store answers
// by exact scan whenever the index is absent or under-filled. A RWMutex
// serializes Add/Clear against Search, so a retrieve issued during a
// wipe sees either the old rows or none, never a torn table.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
	logger    *zap.Logger

	mu    sync.RWMutex
	index ann.Index
}

// openDatabase opens SQLite with the settings the store relies on.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for read concurrency under a single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Open creates or opens a store at dbPath bound to the given embedding
// dimension. Rows already present are loaded into a fresh index.
func Open(dbPath string, dimension int, logger *zap.Logger) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		dimension: dimension,
		logger:    logger,
	}

	s.mu.Lock()
	s.rebuildIndexLocked(context.Background())
	s.mu.Unlock()

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Dimension returns the embedding dimension bound at Open.
func (s *SQLiteStore) Dimension() int {
	return s.dimension
}

// Add writes all rows in one transaction. Either every row lands or
// none do; a partial run never leaks into the table. The approximate
// index is rebuilt afterwards, advisory on failure.
func (s *SQLiteStore) Add(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: row %s has %d dimensions, store expects %d",
				types.ErrDimensionMismatch, r.ID, len(r.Vector), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, content, embedding, filepath, start_line, end_line, language, repo, branch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Content, serializeVector(r.Vector),
			r.Filepath, r.StartLine, r.EndLine,
			r.Language, r.Repo, r.Branch)
		if err != nil {
			return fmt.Errorf("insert row %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add transaction: %w", err)
	}

	s.rebuildIndexLocked(ctx)
	return nil
}

// Clear wipes every row. There is no selective delete; re-indexing is
// always clear plus rebuild.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	s.index = nil
	s.logger.Info("vector store cleared")
	return nil
}

// Count returns the total number of rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Search returns up to limit rows nearest to query, most similar
// first. Candidates come from the approximate index when one is built;
// the SQL filter then prunes them and exact cosine similarity ranks
// the survivors. If pruning leaves fewer than limit rows, or no index
// exists, the store falls back to a full filtered scan.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, limit int, f Filters) ([]Result, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			types.ErrDimensionMismatch, len(query), s.dimension)
	}
	if limit <= 0 {
		return []Result{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index != nil {
		matches := s.index.Query(query, limit*oversample)
		if len(matches) > 0 {
			rowids := make([]string, len(matches))
			for i, m := range matches {
				rowids[i] = m.ID
			}
			results, err := s.searchByRowIDs(ctx, query, rowids, limit, f)
			if err != nil {
				return nil, err
			}
			if len(results) >= limit {
				return results, nil
			}
			// Filter stripped too many candidates; exact scan instead.
		}
	}

	return s.searchScan(ctx, query, limit, f)
}

// Stats returns counts and the active index strategy.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{IndexStrategy: "none"}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.Rows); err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT repo) FROM chunks").Scan(&stats.Repos); err != nil {
		return nil, fmt.Errorf("count repos: %w", err)
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	s.mu.RLock()
	if s.index != nil {
		stats.IndexStrategy = string(s.index.Strategy())
	}
	s.mu.RUnlock()

	return stats, nil
}

// rebuildIndexLocked loads all vectors and rebuilds the approximate
// index with the strategy for the current row count. Failures leave the
// store fully scannable; they cost speed, not correctness.
func (s *SQLiteStore) rebuildIndexLocked(ctx context.Context) {
	entries, err := s.loadEntries(ctx)
	if err != nil {
		s.logger.Warn("index rebuild skipped, store stays scan-only", zap.Error(err))
		s.index = nil
		return
	}
	if len(entries) == 0 {
		s.index = nil
		return
	}

	params := ann.ChooseStrategy(len(entries))
	idx, err := ann.Build(params, entries)
	if err != nil {
		s.logger.Warn("index build failed, store stays scan-only",
			zap.String("strategy", string(params.Strategy)),
			zap.Int("rows", len(entries)),
			zap.Error(err))
		s.index = nil
		return
	}

	s.index = idx
	s.logger.Info("vector index rebuilt",
		zap.String("strategy", string(params.Strategy)),
		zap.Int("rows", len(entries)),
		zap.Int("partitions", params.Partitions))
}

// loadEntries keys index entries by rowid, which stays unique when the
// same chunk id appears on multiple repos or branches.
func (s *SQLiteStore) loadEntries(ctx context.Context) ([]ann.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT rowid, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []ann.Entry
	for rows.Next() {
		var rowid int64
		var blob []byte
		if err := rows.Scan(&rowid, &blob); err != nil {
			return nil, err
		}
		vec := deserializeVector(blob)
		if len(vec) != s.dimension {
			continue
		}
		entries = append(entries, ann.Entry{ID: strconv.FormatInt(rowid, 10), Vector: vec})
	}
	return entries, rows.Err()
}
