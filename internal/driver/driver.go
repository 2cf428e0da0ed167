// Package driver provides pluggable source-database abstractions. Each
// source engine (Oracle, PostgreSQL, SQL Server) implements the Source
// interface to keep all engine-specific SQL, catalogs, and type rules in
// one cohesive unit.
package driver

import (
	"context"
	"database/sql"
	"time"
)

// Config carries the connection-creation settings resolved once at startup
// and threaded explicitly through every Open call. There is no process-wide
// cache of client mode; a Config is plain data and can be constructed in
// tests with fake probe results.
type Config struct {
	// ClientMode selects the Oracle client stack: "thin" (pure protocol),
	// "thick" (requires an installed client library), or "auto" to probe.
	// Ignored by drivers without a client-mode distinction.
	ClientMode string

	// LibDir is the client library directory for thick mode.
	LibDir string

	// MaxOpenConns bounds the pooled connections per source handle. Each
	// parallel worker checks out its own dedicated connection from this
	// pool; workers never share one.
	MaxOpenConns int

	// ConnectTimeout applies to the initial ping.
	ConnectTimeout time.Duration

	// FetchRows is the driver-level fetch/prefetch row count for bulk
	// extraction, where the engine supports it.
	FetchRows int
}

// DefaultConfig returns the connection settings used when the caller
// supplies none.
func DefaultConfig() Config {
	return Config{
		ClientMode:     "thin",
		MaxOpenConns:   8,
		ConnectTimeout: 30 * time.Second,
		FetchRows:      5000,
	}
}

// Defaults contains per-engine default values consumed by
// config.applyDefaults().
type Defaults struct {
	// Port is the default port (1521 Oracle, 5432 PostgreSQL, 1433 MSSQL).
	Port int

	// Schema is the default schema/owner when the config omits one.
	Schema string
}

// Source is a pluggable source-database driver.
//
// To add a new engine:
//  1. Create a package under internal/driver/<engine>/
//  2. Implement Source
//  3. Register via init(): driver.Register(&Driver{})
type Source interface {
	// Name returns the primary driver name (e.g., "oracle").
	Name() string

	// Aliases returns alternative names for this driver.
	Aliases() []string

	// Defaults returns the default configuration values for this engine.
	Defaults() Defaults

	// Open opens a pooled connection handle using the resolved Config and
	// verifies connectivity with a ping.
	Open(ctx context.Context, dsn string, cfg Config) (*sql.DB, error)

	// Dialect returns the SQL dialect for this engine.
	Dialect() Dialect

	// TypeMapper returns the mapper from source types to canonical
	// columnar types.
	TypeMapper() TypeMapper

	// NewInspector returns a catalog inspector bound to an open handle.
	NewInspector(db *sql.DB) Inspector
}

// Inspector reads source catalog metadata.
type Inspector interface {
	// ListTables returns the table names in a schema, sorted.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// Inspect returns full metadata for one table: columns, primary key,
	// partitions, row count estimate, size, and ranked incremental-column
	// candidates. Structural failures (columns, primary key) are fatal;
	// size/segment restrictions degrade to SizeMB == 0.
	Inspect(ctx context.Context, schema, table string) (*Table, error)
}

// TypeMapper converts a source column's declared type, precision, and
// scale to a canonical columnar type. Implementations are deterministic
// total functions: unrecognized types fall back to string, never an error.
type TypeMapper interface {
	MapType(col Column) ColumnType
}

// RowNormalizer is optionally implemented by sources whose database/sql
// driver scans values in engine-specific wrapper types. NormalizeRow
// rewrites one scanned row in place to plain Go values matching the
// canonical column types.
type RowNormalizer interface {
	NormalizeRow(row []any, types []ColumnType)
}
