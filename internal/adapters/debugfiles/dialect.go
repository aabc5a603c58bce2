package debugfiles

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect abstracts the SQL that differs between backends.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string
	// DSN turns a configured path or connection string into a data source name.
	DSN(pathOrConnStr string) string
	// Placeholder returns the parameter placeholder for the 1-based index.
	Placeholder(index int) string
	// Schema returns the statements creating the table and its indexes.
	Schema() []string
}

var commonIndexes = []string{
	"CREATE INDEX IF NOT EXISTS debug_files_debug_id ON debug_files (project_owner, project, debug_id)",
	"CREATE INDEX IF NOT EXISTS debug_files_code_id ON debug_files (project_owner, project, code_id)",
	"CREATE INDEX IF NOT EXISTS debug_files_created ON debug_files (project_owner, project, date_created)",
}

// SQLiteDialect targets modernc.org/sqlite.
type SQLiteDialect struct{}

func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) Schema() []string {
	return append([]string{`CREATE TABLE IF NOT EXISTS debug_files (
		id TEXT PRIMARY KEY,
		project_owner TEXT NOT NULL,
		project TEXT NOT NULL,
		debug_id TEXT NOT NULL,
		code_id TEXT NOT NULL DEFAULT '',
		object_name TEXT NOT NULL DEFAULT '',
		symbol_type TEXT NOT NULL,
		cpu_name TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		sha1 TEXT NOT NULL DEFAULT '',
		date_created TEXT NOT NULL
	)`}, commonIndexes...)
}

// PostgresDialect targets PostgreSQL through the pgx stdlib driver.
type PostgresDialect struct{}

func (PostgresDialect) DriverName() string { return "pgx" }

func (PostgresDialect) DSN(connStr string) string { return connStr }

func (PostgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index) }

func (PostgresDialect) Schema() []string {
	return append([]string{`CREATE TABLE IF NOT EXISTS debug_files (
		id TEXT PRIMARY KEY,
		project_owner TEXT NOT NULL,
		project TEXT NOT NULL,
		debug_id TEXT NOT NULL,
		code_id TEXT NOT NULL DEFAULT '',
		object_name TEXT NOT NULL DEFAULT '',
		symbol_type TEXT NOT NULL,
		cpu_name TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		sha1 TEXT NOT NULL DEFAULT '',
		date_created TEXT NOT NULL
	)`}, commonIndexes...)
}

// DialectFor returns the dialect of a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	case "postgres", "pgx", "postgresql":
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}
