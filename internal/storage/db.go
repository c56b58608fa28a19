package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reqflow/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB wraps the SQL connection that holds workflows and settings. SQLite is
// the default; Postgres and MySQL share the same schema.
type DB struct {
	conn   *sql.DB
	driver domain.DatabaseDriver
}

// New creates a new DB, opening (or creating) the SQLite file at dbPath.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(domain.DatabaseDriverSQLite, dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
}

// Open connects with the given driver and DSN and runs the migrations.
func Open(driver domain.DatabaseDriver, dsn string) (*DB, error) {
	var name string
	switch driver {
	case domain.DatabaseDriverSQLite:
		name = "sqlite"
	case domain.DatabaseDriverPostgres:
		name = "postgres"
	case domain.DatabaseDriverMySQL:
		name = "mysql"
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", driver)
	}

	conn, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if driver == domain.DatabaseDriverSQLite {
		// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the SQL dialect in use.
func (db *DB) Driver() domain.DatabaseDriver {
	return db.driver
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(q string) string {
	if db.driver != domain.DatabaseDriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (db *DB) exec(e execer, q string, args ...any) (sql.Result, error) {
	return e.Exec(db.rebind(q), args...)
}

func (db *DB) query(e execer, q string, args ...any) (*sql.Rows, error) {
	return e.Query(db.rebind(q), args...)
}

func (db *DB) queryRow(e execer, q string, args ...any) *sql.Row {
	return e.QueryRow(db.rebind(q), args...)
}

// migrate creates the schema. The DDL sticks to types all three dialects
// accept: VARCHAR keys, TEXT payloads, DOUBLE PRECISION coordinates and
// BIGINT unix-millisecond timestamps.
func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			trigger_json TEXT NOT NULL,
			requests_json TEXT NOT NULL,
			viewport_x DOUBLE PRECISION NOT NULL DEFAULT 0,
			viewport_y DOUBLE PRECISION NOT NULL DEFAULT 0,
			viewport_zoom DOUBLE PRECISION NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS node_positions (
			workflow_id VARCHAR(64) NOT NULL,
			node_id VARCHAR(64) NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (workflow_id, node_id)
		)`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			name VARCHAR(128) PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mcp_approvals (
			id VARCHAR(64) PRIMARY KEY,
			tool VARCHAR(128) NOT NULL,
			description TEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			metadata TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", strings.TrimSpace(m)[:40], err)
		}
	}
	return nil
}
