package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ Store = (*SQLite)(nil)

// SQLite persists runs to a single sqlite table as JSON payloads while
// serving reads from a hydrated in-memory copy.
type SQLite struct {
	*Memory
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLite opens the sqlite-backed run store at path, creating the file
// and the runs table when missing.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "carboncore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		created_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	s := &SQLite{Memory: NewMemory(), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM runs`)
	if err != nil {
		return fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var runs []Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan run: %w", err)
		}
		var run Run
		if err := json.Unmarshal(payload, &run); err != nil {
			return fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate runs: %w", err)
	}
	s.hydrate(runs)
	return nil
}

// Save records run in memory, then appends it to the runs table.
func (s *SQLite) Save(ctx context.Context, run Run) (Run, error) {
	saved, err := s.Memory.Save(ctx, run)
	if err != nil {
		return Run{}, err
	}
	if err := s.persist(ctx, saved); err != nil {
		return Run{}, err
	}
	return saved, nil
}

func (s *SQLite) persist(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, site, created_at, payload) VALUES(?,?,?,?)`,
		run.ID, run.Site, run.CreatedAt.Format(time.RFC3339), payload); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Driver reports the backing driver.
func (s *SQLite) Driver() Driver { return DriverSQLite }

// Close closes the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLite) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }
