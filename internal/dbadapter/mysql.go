package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

type mysqlAdapter struct {
	baseAdapter
	cfg *Config
}

type mysqlDialect struct{ database string }

func newMySQLAdapter(cfg *Config) *mysqlAdapter {
	a := &mysqlAdapter{cfg: cfg}
	a.dialect = mysqlDialect{database: cfg.Database}
	a.pool = newConnPool(cfg.PoolSize)
	a.rowCap = cfg.RowCap
	return a
}

func (a *mysqlAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.cfg.User, a.cfg.Password, a.cfg.Host, a.cfg.Port, a.cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return newQueryError(ErrConnection, "opening mysql: "+err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		return newQueryError(ErrConnection, "pinging mysql: "+err.Error())
	}
	a.db = db
	return nil
}

func (d mysqlDialect) name() string          { return "MySQL" }
func (d mysqlDialect) versionQuery() string  { return "SELECT VERSION() AS version" }
func (d mysqlDialect) tablesQuery() string   { return "SHOW TABLES" }
func (d mysqlDialect) quoteIdent(n string) string { return "`" + n + "`" }

func (d mysqlDialect) columnsQuery(table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{d.database, table}
}

func (d mysqlDialect) primaryKeysQuery(table string) (string, []any) {
	return `SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`, []any{d.database, table}
}

func (d mysqlDialect) foreignKeysQuery(table string) (string, []any) {
	return `SELECT column_name, referenced_table_name AS referenced_table, referenced_column_name AS referenced_column
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL`, []any{d.database, table}
}

func (d mysqlDialect) rowCountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS c FROM %s", d.quoteIdent(table))
}

func (d mysqlDialect) explainQuery(sql string) string {
	return "EXPLAIN " + sql
}
