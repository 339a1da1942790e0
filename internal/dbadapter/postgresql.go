package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type postgresAdapter struct {
	baseAdapter
	cfg *Config
}

type postgresDialect struct{}

func newPostgreSQLAdapter(cfg *Config) *postgresAdapter {
	a := &postgresAdapter{cfg: cfg}
	a.dialect = postgresDialect{}
	a.pool = newConnPool(cfg.PoolSize)
	a.rowCap = cfg.RowCap
	return a
}

func (a *postgresAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		a.cfg.Host, a.cfg.Port, a.cfg.User, a.cfg.Password, a.cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return newQueryError(ErrConnection, "opening postgres: "+err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		return newQueryError(ErrConnection, "pinging postgres: "+err.Error())
	}
	a.db = db
	return nil
}

func (d postgresDialect) name() string         { return "PostgreSQL" }
func (d postgresDialect) versionQuery() string { return "SELECT version() AS version" }
func (d postgresDialect) tablesQuery() string {
	return "SELECT tablename FROM pg_tables WHERE schemaname='public'"
}
func (d postgresDialect) quoteIdent(n string) string { return `"` + n + `"` }

func (d postgresDialect) columnsQuery(table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, []any{table}
}

func (d postgresDialect) primaryKeysQuery(table string) (string, []any) {
	return `SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND kcu.table_schema = 'public' AND kcu.table_name = $1
		ORDER BY kcu.ordinal_position`, []any{table}
}

func (d postgresDialect) foreignKeysQuery(table string) (string, []any) {
	return `SELECT
			kcu.column_name AS column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public' AND tc.table_name = $1`, []any{table}
}

func (d postgresDialect) rowCountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) AS c FROM %s", d.quoteIdent(table))
}

func (d postgresDialect) explainQuery(sql string) string {
	return "EXPLAIN " + sql
}
