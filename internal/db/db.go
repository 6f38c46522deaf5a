// Package db is the run-history ledger: one row per run, plus the stage events
// and test attempts recorded while it executed.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialects.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// DB wraps the ledger connection.
type DB struct {
	conn    *sql.DB
	dsn     string
	dialect string
}

// DefaultDBPath returns ~/.vitestgpt/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".vitestgpt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// IsPostgres reports whether dsn addresses a PostgreSQL server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens the ledger at dsn: a postgres:// URL goes through pgx, anything
// else is a SQLite path (":memory:" included).
func Open(dsn string) (*DB, error) {
	if IsPostgres(dsn) {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func openSQLite(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{conn: conn, dsn: path, dialect: DialectSQLite}, nil
}

func openPostgres(dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{conn: conn, dsn: dsn, dialect: DialectPostgres}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Dialect returns DialectSQLite or DialectPostgres.
func (d *DB) Dialect() string {
	return d.dialect
}

// Rebind rewrites ? placeholders to $n for PostgreSQL.
func (d *DB) Rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) exec(query string, args ...any) (sql.Result, error) {
	return d.conn.Exec(d.Rebind(query), args...)
}

func (d *DB) query(query string, args ...any) (*sql.Rows, error) {
	return d.conn.Query(d.Rebind(query), args...)
}

func (d *DB) queryRow(query string, args ...any) *sql.Row {
	return d.conn.QueryRow(d.Rebind(query), args...)
}

// schemaV1 is written against both dialects; {{serial}} is the auto-increment
// primary key type.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    function_name TEXT NOT NULL,
    input_file    TEXT NOT NULL,
    output_file   TEXT NOT NULL,
    status        TEXT NOT NULL CHECK(status IN ('running','passed','halted','failed')),
    message       TEXT,
    attempts      INTEGER NOT NULL DEFAULT 0,
    started_at    TEXT NOT NULL,
    finished_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS stage_events (
    id        {{serial}},
    run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    stage     TEXT NOT NULL,
    event     TEXT NOT NULL,
    detail    TEXT,
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stage_events_run ON stage_events(run_id, id);

CREATE TABLE IF NOT EXISTS test_attempts (
    id          {{serial}},
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration   INTEGER NOT NULL,
    exit_code   INTEGER NOT NULL,
    passed      BOOLEAN NOT NULL,
    summary     TEXT,
    duration_ms INTEGER,
    timestamp   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_test_attempts_run ON test_attempts(run_id, iteration);
`

func (d *DB) schema() string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == DialectPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	return strings.ReplaceAll(schemaV1, "{{serial}}", serial)
}

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.queryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(d.schema()) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}
	if _, err := tx.Exec(d.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (1, ?)"), now()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"test_attempts", "stage_events", "runs", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}

// splitStatements breaks a schema script into single statements; pgx does not
// accept several statements in one prepared Exec.
func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
