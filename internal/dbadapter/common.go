package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// dialectOps isolates the handful of things that actually differ between
// MySQL, PostgreSQL and SQLite: identifier quoting, the EXPLAIN verb,
// the version query, and the information_schema-shaped introspection
// statements.
type dialectOps interface {
	name() string
	versionQuery() string
	tablesQuery() string
	columnsQuery(table string) (string, []any)
	primaryKeysQuery(table string) (string, []any)
	foreignKeysQuery(table string) (string, []any)
	rowCountQuery(table string) string
	explainQuery(sql string) string
	quoteIdent(name string) string
}

// baseAdapter implements the dialect-neutral half of DBAdapter
// (introspection, validate, safe_execute) once, shared by all three
// dialect files, each of which only supplies connection setup and a
// dialectOps.
type baseAdapter struct {
	db      *sql.DB
	pool    *connPool
	dialect dialectOps
	rowCap  int
}

func (a *baseAdapter) GetDatabaseType() string { return a.dialect.name() }

func (a *baseAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *baseAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	release, err := a.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return &QueryResult{
			Error:         err.Error(),
			ExecutionTime: time.Since(start).Milliseconds(),
		}, classifyError(err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, classifyError(err)
	}
	result.ExecutionTime = time.Since(start).Milliseconds()
	return result, nil
}

func (a *baseAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	result, err := a.ExecuteQuery(ctx, a.dialect.versionQuery())
	if err != nil {
		return "", err
	}
	if len(result.Rows) > 0 {
		for _, v := range result.Rows[0] {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}
	return "unknown", nil
}

func (a *baseAdapter) ListTables(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx, a.dialect.tablesQuery())
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		for _, v := range row {
			if s, ok := v.(string); ok {
				tables = append(tables, s)
				break
			}
		}
	}
	return tables, nil
}

func (a *baseAdapter) ColumnsOf(ctx context.Context, table string) ([]ColumnInfo, error) {
	query, args := a.dialect.columnsQuery(table)
	result, err := a.queryWithArgs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(result.Rows))
	for _, row := range result.Rows {
		ci := ColumnInfo{
			Name:     asString(row["column_name"]),
			DataType: asString(row["data_type"]),
			Nullable: strings.EqualFold(asString(row["is_nullable"]), "yes"),
		}
		if d, ok := row["column_default"]; ok {
			ci.DefaultVal = asString(d)
		}
		cols = append(cols, ci)
	}
	return cols, nil
}

func (a *baseAdapter) SampleRows(ctx context.Context, table string, n int) (*QueryResult, error) {
	if n <= 0 {
		n = 5
	}
	q := fmt.Sprintf("SELECT * FROM %s LIMIT %d", a.dialect.quoteIdent(table), n)
	return a.ExecuteQuery(ctx, q)
}

func (a *baseAdapter) RowCount(ctx context.Context, table string) (int64, error) {
	result, err := a.ExecuteQuery(ctx, a.dialect.rowCountQuery(table))
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 {
		return 0, nil
	}
	for _, v := range result.Rows[0] {
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			var out int64
			fmt.Sscanf(n, "%d", &out)
			return out, nil
		}
	}
	return 0, nil
}

func (a *baseAdapter) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	query, args := a.dialect.primaryKeysQuery(table)
	result, err := a.queryWithArgs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	pks := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		for _, v := range row {
			if s, ok := v.(string); ok {
				pks = append(pks, s)
				break
			}
		}
	}
	return pks, nil
}

func (a *baseAdapter) ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	query, args := a.dialect.foreignKeysQuery(table)
	result, err := a.queryWithArgs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	fks := make([]ForeignKeyInfo, 0, len(result.Rows))
	for _, row := range result.Rows {
		fks = append(fks, ForeignKeyInfo{
			Column:           asString(row["column_name"]),
			ReferencedTable:  asString(row["referenced_table"]),
			ReferencedColumn: asString(row["referenced_column"]),
		})
	}
	return fks, nil
}

// Validate issues EXPLAIN <sql> inside a read-only transaction that is
// always rolled back, never committed, so the syntax check cannot
// leave any effect behind even if a driver were to treat EXPLAIN as
// something other than inert.
func (a *baseAdapter) Validate(ctx context.Context, query string) error {
	release, err := a.pool.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, a.dialect.explainQuery(query))
	if err != nil {
		return newQueryError(ErrSyntax, err.Error())
	}
	rows.Close()
	return nil
}

var limitRe = regexp.MustCompile(`(?i)\blimit\s+\d+`)

// SafeExecute enforces a per-statement timeout and, absent an explicit
// LIMIT clause, wraps the query in a row-capping subselect, matching
// safe_execute in database/connection.py.
func (a *baseAdapter) SafeExecute(ctx context.Context, query string, timeoutSeconds int) (*QueryResult, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 15
	}
	cap := a.rowCap
	if cap <= 0 {
		cap = 1000
	}

	toRun := query
	if !limitRe.MatchString(query) {
		trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
		toRun = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", trimmed, cap)
	}

	tctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	result, err := a.ExecuteQuery(tctx, toRun)
	if err != nil {
		if tctx.Err() != nil {
			return nil, newQueryError(ErrTimeout, "statement exceeded timeout")
		}
		return nil, err
	}
	if result.RowCount > cap {
		result.Rows = result.Rows[:cap]
		result.RowCount = cap
	}
	return result, nil
}

func (a *baseAdapter) queryWithArgs(ctx context.Context, query string, args []any) (*QueryResult, error) {
	release, err := a.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, classifyError(err)
	}
	result.ExecutionTime = time.Since(start).Milliseconds()
	return result, nil
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return newQueryError(ErrTimeout, err.Error())
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax"):
		return newQueryError(ErrSyntax, err.Error())
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return newQueryError(ErrTimeout, err.Error())
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial"):
		return newQueryError(ErrConnection, err.Error())
	default:
		return newQueryError(ErrRuntime, err.Error())
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
