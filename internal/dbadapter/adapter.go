// Package dbadapter provides a single execution abstraction over MySQL,
// PostgreSQL and SQLite: catalog introspection, EXPLAIN-based validation,
// and timeout/row-capped safe execution, guarded by a bounded connection
// pool.
package dbadapter

import (
	"context"
	"database/sql"
)

// DatabaseType enumerates the supported dialects.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// QueryResult is the dialect-neutral shape every adapter method returns.
type QueryResult struct {
	Columns       []string
	Rows          []map[string]any
	RowCount      int
	ExecutionTime int64 // milliseconds
	Error         string
}

// ColumnInfo is one row of catalog introspection.
type ColumnInfo struct {
	Name       string
	DataType   string
	Nullable   bool
	DefaultVal string
}

// ForeignKeyInfo is one foreign-key edge discovered via
// information_schema.key_column_usage / constraint_column_usage.
type ForeignKeyInfo struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Config is the generic connection configuration; FilePath is SQLite-only.
type Config struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	FilePath string

	PoolSize int
	RowCap   int
}

// DBAdapter is the execution surface every dialect implements. Catalog
// introspection, validation and safe execution are layered on top of the
// raw ExecuteQuery the dialect files provide.
type DBAdapter interface {
	Connect(ctx context.Context) error
	Close() error

	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)
	GetDatabaseType() string
	GetDatabaseVersion(ctx context.Context) (string, error)

	ListTables(ctx context.Context) ([]string, error)
	ColumnsOf(ctx context.Context, table string) ([]ColumnInfo, error)
	SampleRows(ctx context.Context, table string, n int) (*QueryResult, error)
	RowCount(ctx context.Context, table string) (int64, error)
	PrimaryKeys(ctx context.Context, table string) ([]string, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error)

	// Validate issues an EXPLAIN without executing the statement.
	Validate(ctx context.Context, query string) error
	// SafeExecute enforces a statement timeout and, absent an explicit
	// LIMIT, wraps query in a row-capping subselect.
	SafeExecute(ctx context.Context, query string, timeout int) (*QueryResult, error)
}

// NewAdapter is the dialect factory, returning a pooled,
// validate/safe_execute-capable adapter for the configured database type.
func NewAdapter(cfg *Config) (DBAdapter, error) {
	if cfg.RowCap <= 0 {
		cfg.RowCap = 1000
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	switch DatabaseType(cfg.Type) {
	case MySQL:
		return newMySQLAdapter(cfg), nil
	case PostgreSQL:
		return newPostgreSQLAdapter(cfg), nil
	case SQLite:
		return newSQLiteAdapter(cfg), nil
	default:
		return nil, &UnsupportedDatabaseError{Type: cfg.Type}
	}
}

// UnsupportedDatabaseError reports an unknown dialect string.
type UnsupportedDatabaseError struct{ Type string }

func (e *UnsupportedDatabaseError) Error() string {
	return "unsupported database type: " + e.Type
}

func scanRows(rows *sql.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &QueryResult{Columns: columns, Rows: result, RowCount: len(result)}, nil
}
