package tools

import (
	"fmt"
	"sort"
	"strings"

	"context"

	"clinsql/internal/dbadapter"
	"clinsql/internal/llmgateway"
)

// RETools are the Result Explainer's tools.
type RETools struct {
	GW *llmgateway.Gateway
}

const explainResultsSystemPrompt = `You explain a SQL query's result to a clinical researcher in plain language.
Given the question, SQL, and a sample of rows, answer the question directly and concisely, then add one sentence of context if useful.`

// ExplainResults is RE's small-result path: an LLM call given the
// question, SQL, and up to 20 formatted rows.
func (t *RETools) ExplainResults(ctx context.Context, question, sql string, columns []string, rows []map[string]any) ToolResult {
	preview := rows
	if len(preview) > 20 {
		preview = preview[:20]
	}
	user := fmt.Sprintf("Question: %s\n\nSQL: %s\n\nColumns: %s\n\nRows (%d of %d):\n%s",
		question, sql, strings.Join(columns, ", "), len(preview), len(rows), formatRows(preview))

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: explainResultsSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.2, 500, false)
	if err != nil {
		return Fail(err)
	}
	return OkTokens(strings.TrimSpace(resp.Content), resp.Usage.Input+resp.Usage.Output)
}

// ColumnStats is one column's summary statistics for the large-result
// path.
type ColumnStats struct {
	Column        string   `json:"column"`
	IsNumeric     bool     `json:"is_numeric"`
	Min           float64  `json:"min,omitempty"`
	Max           float64  `json:"max,omitempty"`
	Mean          float64  `json:"mean,omitempty"`
	Count         int      `json:"count"`
	UniqueCount   int      `json:"unique_count,omitempty"`
	SampleValues  []string `json:"sample_values,omitempty"`
}

func computeColumnStats(columns []string, rows []map[string]any) []ColumnStats {
	stats := make([]ColumnStats, 0, len(columns))
	for _, col := range columns {
		cs := ColumnStats{Column: col, Count: len(rows)}
		var nums []float64
		seen := make(map[string]bool)
		allNumeric := len(rows) > 0
		for _, row := range rows {
			v, ok := row[col]
			if !ok || v == nil {
				allNumeric = false
				continue
			}
			s := fmt.Sprintf("%v", v)
			seen[s] = true
			if f, ok := toFloatAny(v); ok {
				nums = append(nums, f)
			} else {
				allNumeric = false
			}
		}
		cs.UniqueCount = len(seen)
		if allNumeric && len(nums) > 0 {
			cs.IsNumeric = true
			cs.Min, cs.Max = nums[0], nums[0]
			sum := 0.0
			for _, n := range nums {
				if n < cs.Min {
					cs.Min = n
				}
				if n > cs.Max {
					cs.Max = n
				}
				sum += n
			}
			cs.Mean = sum / float64(len(nums))
		} else {
			i := 0
			for s := range seen {
				if i >= 5 {
					break
				}
				cs.SampleValues = append(cs.SampleValues, s)
				i++
			}
			sort.Strings(cs.SampleValues)
		}
		stats = append(stats, cs)
	}
	return stats
}

func toFloatAny(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

const summarizeLargeResultsSystemPrompt = `You summarize a large SQL result set for a clinical researcher.
Given the question, SQL, first-ten and last-five sample rows, and per-column statistics, describe the overall shape of the answer concisely. Do not list every row.`

// SummarizeLargeResults is RE's large-result path: per-column stats
// over the full result, then an LLM call with first-10/last-5 sample
// rows and the stats bundle.
func (t *RETools) SummarizeLargeResults(ctx context.Context, question, sql string, columns []string, rows []map[string]any) ToolResult {
	stats := computeColumnStats(columns, rows)

	var sampleRows []map[string]any
	if len(rows) <= 15 {
		sampleRows = rows
	} else {
		sampleRows = append(sampleRows, rows[:10]...)
		sampleRows = append(sampleRows, rows[len(rows)-5:]...)
	}

	var statLines strings.Builder
	for _, s := range stats {
		if s.IsNumeric {
			fmt.Fprintf(&statLines, "%s: numeric min=%.2f max=%.2f mean=%.2f count=%d\n", s.Column, s.Min, s.Max, s.Mean, s.Count)
		} else {
			fmt.Fprintf(&statLines, "%s: categorical unique=%d samples=%v\n", s.Column, s.UniqueCount, s.SampleValues)
		}
	}

	user := fmt.Sprintf("Question: %s\n\nSQL: %s\n\nTotal rows: %d\n\nColumn statistics:\n%s\nFirst-10/last-5 sample rows:\n%s",
		question, sql, len(rows), statLines.String(), formatRows(sampleRows))

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: summarizeLargeResultsSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.2, 700, false)
	if err != nil {
		return Fail(err)
	}
	return OkTokens(map[string]any{
		"explanation": strings.TrimSpace(resp.Content),
		"statistics":  stats,
	}, resp.Usage.Input+resp.Usage.Output)
}

const splitComplexQuerySystemPrompt = `A SQL query joins three or more tables. Decide whether answering the question would be clearer as several simpler sub-queries executed separately.
Return strict JSON: {"should_split": true|false, "queries": [{"sql": "...", "description": "..."}]}
If splitting would not help, return should_split=false with an empty queries array.`

// SplitComplexQuery decides whether a complex-join query should be
// decomposed into simpler sub-queries. A should_split=false response
// with empty queries means "do not split", not an error.
func (t *RETools) SplitComplexQuery(ctx context.Context, question, sql string) ToolResult {
	user := fmt.Sprintf("Question: %s\n\nSQL: %s", question, sql)

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: splitComplexQuerySystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.1, 800, true)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed SplitQueryResult
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return FailTokens(llmgateway.ErrExtractFailed, tokens)
	}
	return OkTokens(parsed, tokens)
}

// SplitQuery is one sub-query SplitComplexQuery proposes.
type SplitQuery struct {
	SQL         string `json:"sql"`
	Description string `json:"description"`
}

// SplitQueryResult is SplitComplexQuery's result payload.
type SplitQueryResult struct {
	ShouldSplit bool         `json:"should_split"`
	Queries     []SplitQuery `json:"queries"`
}

// ExecuteSubQuery runs one split sub-query through the adapter with a
// 30s timeout.
func ExecuteSubQuery(ctx context.Context, adapter dbadapter.DBAdapter, sql string) (*dbadapter.QueryResult, error) {
	return adapter.SafeExecute(ctx, sql, 30)
}

func formatRows(rows []map[string]any) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%v\n", row))
	}
	return sb.String()
}
