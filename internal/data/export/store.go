package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"svorder/internal/core/errors"
	"svorder/internal/engine/graph"
	"svorder/internal/engine/symbols"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run is one pipeline result as written to the database.
type Run struct {
	ID        string
	StartedAt time.Time
	Graph     *graph.Graph
	Ordering  graph.Ordering
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "database path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.Newf(errors.CodeValidationError, "database path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun writes the run, its files with their order positions, every symbol
// fact and every edge in one transaction. Omitted files get a NULL position.
func (s *Store) SaveRun(run Run) error {
	if run.Graph == nil {
		return errors.New(errors.CodeValidationError, "run has no graph")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New(errors.CodeValidationError, "run id must not be empty")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := writeRun(tx, run); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func writeRun(tx *sql.Tx, run Run) error {
	recs := run.Graph.Records()
	if _, err := tx.Exec(`INSERT INTO runs(id, started_at, file_count) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), recs.Len()); err != nil {
		return err
	}

	position := make(map[graph.FileID]int, len(run.Ordering.Order))
	for i, id := range run.Ordering.Order {
		position[id] = i
	}

	fileStmt, err := tx.Prepare(`INSERT INTO files(run_id, file_id, path, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fileStmt.Close()
	symStmt, err := tx.Prepare(`INSERT INTO symbols(run_id, file_id, namespace, role, name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer symStmt.Close()

	for f := range recs.All() {
		var pos sql.NullInt64
		if p, ok := position[f.ID]; ok {
			pos = sql.NullInt64{Int64: int64(p), Valid: true}
		}
		if _, err := fileStmt.Exec(run.ID, int64(f.ID), f.Path, pos); err != nil {
			return err
		}
		var symErr error
		f.Each(func(ns symbols.Namespace, role, name string) bool {
			_, symErr = symStmt.Exec(run.ID, int64(f.ID), string(ns), role, name)
			return symErr == nil
		})
		if symErr != nil {
			return symErr
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges(run_id, from_id, to_id, kind, name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range run.Graph.Edges() {
		if _, err := edgeStmt.Exec(run.ID, int64(e.From), int64(e.To), string(e.Kind), e.Name); err != nil {
			return err
		}
	}
	return nil
}

// LoadOrder returns the ordered paths stored for runID.
func (s *Store) LoadOrder(runID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load order", func() error {
		var qErr error
		rows, qErr = s.db.Query(`SELECT path FROM files WHERE run_id = ? AND position IS NOT NULL ORDER BY position ASC`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return paths, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
