package catalog

import (
	"context"
	"fmt"
	"strings"

	"clinsql/internal/dbadapter"
)

// collectQuality runs the deterministic, non-LLM data-quality checks and
// value-statistics collection for one table. Metadata tables and empty
// tables are skipped.
func (c *Catalog) collectQuality(ctx context.Context, adapter dbadapter.DBAdapter, td *TableDescriptor) {
	if td.IsMetadata || td.RowCount == 0 {
		return
	}

	for i := range td.Columns {
		col := &td.Columns[i]

		if col.Semantic == TypeText {
			if issue := checkWhitespace(ctx, adapter, td.Name, col.Name); issue != nil {
				td.QualityIssues = append(td.QualityIssues, *issue)
			}
			if issue := checkTypeMismatch(ctx, adapter, td.Name, col.Name); issue != nil {
				td.QualityIssues = append(td.QualityIssues, *issue)
			}
		}

		stats := collectValueStats(ctx, adapter, td.Name, col.Name, col.Semantic, td.RowCount)
		td.Stats[col.Name] = stats

		if stats.NullPercent > 50 {
			td.QualityIssues = append(td.QualityIssues, QualityIssue{
				Column:      col.Name,
				Kind:        "null_heavy",
				Description: fmt.Sprintf("%.0f%% NULL values", stats.NullPercent),
			})
		}
	}

	for _, fk := range td.ForeignKeys {
		if issue := checkOrphanRecords(ctx, adapter, td.Name, fk); issue != nil {
			td.QualityIssues = append(td.QualityIssues, *issue)
		}
	}
}

func checkWhitespace(ctx context.Context, a dbadapter.DBAdapter, table, col string) *QualityIssue {
	q := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s IS NOT NULL AND %s != TRIM(%s) LIMIT 5`,
		quoteIdent(col), quoteIdent(table), quoteIdent(col), quoteIdent(col), quoteIdent(col),
	)
	result, err := a.ExecuteQuery(ctx, q)
	if err != nil || result.RowCount == 0 {
		return nil
	}
	return &QualityIssue{
		Column:      col,
		Kind:        "whitespace",
		Description: fmt.Sprintf("contains leading/trailing whitespace (%d+ rows); wrap in TRIM(%s)", result.RowCount, col),
	}
}

// checkTypeMismatch flags a TEXT column whose non-empty values are
// predominantly numeric digit strings, using a GLOB-based heuristic.
// GLOB is SQLite syntax and no dialect translates it: on MySQL and
// PostgreSQL the query errors and the check reports no issue.
func checkTypeMismatch(ctx context.Context, a dbadapter.DBAdapter, table, col string) *QualityIssue {
	countSQL := fmt.Sprintf(`SELECT COUNT(*) AS cnt FROM %s WHERE %s IS NOT NULL AND %s != ''`,
		quoteIdent(table), quoteIdent(col), quoteIdent(col))
	countResult, err := a.ExecuteQuery(ctx, countSQL)
	if err != nil {
		return nil
	}
	nonEmpty := extractCount(countResult)
	if nonEmpty < 5 {
		return nil
	}

	numericSQL := fmt.Sprintf(
		`SELECT COUNT(*) AS cnt FROM %s WHERE %s IS NOT NULL AND %s != '' AND %s GLOB '[0-9]*' AND %s NOT GLOB '*[a-zA-Z]*'`,
		quoteIdent(table), quoteIdent(col), quoteIdent(col), quoteIdent(col), quoteIdent(col),
	)
	numResult, err := a.ExecuteQuery(ctx, numericSQL)
	if err != nil {
		return nil
	}
	numeric := extractCount(numResult)

	ratio := float64(numeric) / float64(nonEmpty)
	if ratio < 0.8 {
		return nil
	}
	return &QualityIssue{
		Column:      col,
		Kind:        "type_mismatch",
		Description: fmt.Sprintf("TEXT column storing numeric values (%.0f%% numeric); wrap in CAST(%s AS INTEGER)", ratio*100, col),
	}
}

func checkOrphanRecords(ctx context.Context, a dbadapter.DBAdapter, table string, fk ForeignKeyEdge) *QualityIssue {
	q := fmt.Sprintf(
		`SELECT COUNT(*) AS cnt FROM %s child LEFT JOIN %s parent ON child.%s = parent.%s WHERE parent.%s IS NULL AND child.%s IS NOT NULL`,
		quoteIdent(table), quoteIdent(fk.TargetTable),
		quoteIdent(fk.Column), quoteIdent(fk.TargetColumn),
		quoteIdent(fk.TargetColumn), quoteIdent(fk.Column),
	)
	result, err := a.ExecuteQuery(ctx, q)
	if err != nil {
		return nil
	}
	orphans := extractCount(result)
	if orphans == 0 {
		return nil
	}
	return &QualityIssue{
		Column:      fk.Column,
		Kind:        "orphan_fk",
		Description: fmt.Sprintf("%d orphan records not present in %s.%s", orphans, fk.TargetTable, fk.TargetColumn),
	}
}

func collectValueStats(ctx context.Context, a dbadapter.DBAdapter, table, col string, semantic SemanticType, totalRows int64) ValueStats {
	var stats ValueStats

	basicSQL := fmt.Sprintf(`SELECT COUNT(*) - COUNT(%s) AS null_cnt, COUNT(DISTINCT %s) AS distinct_cnt FROM %s`,
		quoteIdent(col), quoteIdent(col), quoteIdent(table))
	result, err := a.ExecuteQuery(ctx, basicSQL)
	if err == nil && result.RowCount > 0 {
		row := result.Rows[0]
		nullCount := toInt(row["null_cnt"])
		stats.DistinctCount = toInt(row["distinct_cnt"])
		if totalRows > 0 {
			stats.NullPercent = float64(nullCount) / float64(totalRows) * 100
		}
	}

	if stats.DistinctCount > 0 && stats.DistinctCount <= 15 {
		topSQL := fmt.Sprintf(`SELECT %s AS val, COUNT(*) AS cnt FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY cnt DESC LIMIT 15`,
			quoteIdent(col), quoteIdent(table), quoteIdent(col), quoteIdent(col))
		if topResult, err := a.ExecuteQuery(ctx, topSQL); err == nil {
			for _, row := range topResult.Rows {
				stats.TopValues = append(stats.TopValues, ValueFrequency{
					Value: fmt.Sprintf("%v", row["val"]),
					Count: toInt(row["cnt"]),
				})
			}
		}
	}

	if semantic == TypeInteger || semantic == TypeNumeric {
		rangeSQL := fmt.Sprintf(`SELECT MIN(%s) AS min_val, MAX(%s) AS max_val FROM %s WHERE %s IS NOT NULL`,
			quoteIdent(col), quoteIdent(col), quoteIdent(table), quoteIdent(col))
		if rangeResult, err := a.ExecuteQuery(ctx, rangeSQL); err == nil && rangeResult.RowCount > 0 {
			row := rangeResult.Rows[0]
			stats.NumericMin = toFloat64(row["min_val"])
			stats.NumericMax = toFloat64(row["max_val"])
			stats.HasRange = true
		}
	}

	return stats
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func extractCount(result *dbadapter.QueryResult) int {
	if result == nil || len(result.Rows) == 0 {
		return 0
	}
	for _, v := range result.Rows[0] {
		return toInt(v)
	}
	return 0
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case int32:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
