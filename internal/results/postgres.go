package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ Store = (*Postgres)(nil)

const (
	postgresDriverName = "pgx"
	// Default DSN keeps parity with Open defaults while allowing overrides via env.
	defaultPostgresDSN = "postgres://localhost/carboncore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres persists runs to a PostgreSQL table as JSONB payloads while
// serving reads from a hydrated in-memory copy.
type Postgres struct {
	*Memory
	db *sql.DB
	mu sync.Mutex
}

// NewPostgres opens a postgres-backed run store using the provided DSN
// (falls back to a local default). It ensures the runs table exists and
// hydrates from any recorded runs.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	s := &Postgres{Memory: NewMemory(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) load(ctx context.Context) error {
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
func (s *Postgres) Save(ctx context.Context, run Run) (Run, error) {
	saved, err := s.Memory.Save(ctx, run)
	if err != nil {
		return Run{}, err
	}
	if err := s.persist(ctx, saved); err != nil {
		return Run{}, err
	}
	return saved, nil
}

func (s *Postgres) persist(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, site, created_at, payload) VALUES($1,$2,$3,$4)`,
		run.ID, run.Site, run.CreatedAt, payload); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Driver reports the backing driver.
func (s *Postgres) Driver() Driver { return DriverPostgres }

// Close closes the underlying database handle.
func (s *Postgres) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Postgres) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
