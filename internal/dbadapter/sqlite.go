package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type sqliteAdapter struct {
	baseAdapter
	cfg *Config
}

type sqliteDialect struct{}

func newSQLiteAdapter(cfg *Config) *sqliteAdapter {
	a := &sqliteAdapter{cfg: cfg}
	a.dialect = sqliteDialect{}
	a.pool = newConnPool(cfg.PoolSize)
	a.rowCap = cfg.RowCap
	return a
}

func (a *sqliteAdapter) Connect(ctx context.Context) error {
	path := a.cfg.FilePath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return newQueryError(ErrConnection, "opening sqlite: "+err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		return newQueryError(ErrConnection, "pinging sqlite: "+err.Error())
	}
	a.db = db
	return nil
}

func (d sqliteDialect) name() string         { return "SQLite" }
func (d sqliteDialect) versionQuery() string { return "SELECT sqlite_version() AS version" }
func (d sqliteDialect) tablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'"
}
func (d sqliteDialect) quoteIdent(n string) string { return `"` + n + `"` }

// SQLite has no information_schema; PRAGMA statements can't be
// parameterized, so these are filled in with the table name directly,
// callers only ever pass identifiers already discovered via ListTables.
func (d sqliteDialect) columnsQuery(table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info(%s)", d.quoteIdent(table)), nil
}

func (d sqliteDialect) primaryKeysQuery(table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info(%s)", d.quoteIdent(table)), nil
}

func (d sqliteDialect) foreignKeysQuery(table string) (string, []any) {
	return fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.quoteIdent(table)), nil
}

func (d sqliteDialect) rowCountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS c FROM %s", d.quoteIdent(table))
}

func (d sqliteDialect) explainQuery(sql string) string {
	return "EXPLAIN QUERY PLAN " + sql
}

// ColumnsOf overrides baseAdapter: PRAGMA table_info shapes columns as
// (cid, name, type, notnull, dflt_value, pk) rather than
// information_schema's column_name/data_type/is_nullable.
func (a *sqliteAdapter) ColumnsOf(ctx context.Context, table string) ([]ColumnInfo, error) {
	query, _ := a.dialect.columnsQuery(table)
	result, err := a.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(result.Rows))
	for _, row := range result.Rows {
		cols = append(cols, ColumnInfo{
			Name:     asString(row["name"]),
			DataType: asString(row["type"]),
			Nullable: asString(row["notnull"]) == "0",
		})
	}
	return cols, nil
}

// PrimaryKeys overrides baseAdapter for the same PRAGMA-shape reason.
func (a *sqliteAdapter) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	query, _ := a.dialect.columnsQuery(table)
	result, err := a.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	var pks []string
	for _, row := range result.Rows {
		if asString(row["pk"]) != "0" && asString(row["pk"]) != "" {
			pks = append(pks, asString(row["name"]))
		}
	}
	return pks, nil
}

// ForeignKeys overrides baseAdapter: PRAGMA foreign_key_list shapes rows
// as (id, seq, table, from, to, on_update, on_delete, match).
func (a *sqliteAdapter) ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	query, _ := a.dialect.foreignKeysQuery(table)
	result, err := a.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	fks := make([]ForeignKeyInfo, 0, len(result.Rows))
	for _, row := range result.Rows {
		fks = append(fks, ForeignKeyInfo{
			Column:           asString(row["from"]),
			ReferencedTable:  asString(row["table"]),
			ReferencedColumn: asString(row["to"]),
		})
	}
	return fks, nil
}
