package agent

import (
	"context"
	"fmt"
	"strings"

	"clinsql/internal/dbadapter"
	"clinsql/internal/logging"
	"clinsql/internal/tools"
)

// ResultExplainer is the fifth and final pipeline stage.
type ResultExplainer struct {
	Tools   *tools.RETools
	Adapter dbadapter.DBAdapter
	Log     *logging.Logger
}

// REData is RE's output.
type REData struct {
	Explanation string                `json:"explanation"`
	Statistics  []tools.ColumnStats   `json:"statistics,omitempty"`
	SubQueries  []SubQueryExplanation `json:"sub_queries,omitempty"`
}

// SubQueryExplanation is one decomposed sub-query and its own explanation.
type SubQueryExplanation struct {
	SQL         string `json:"sql"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

// complexJoinThreshold is the join count at or above which RE tries
// splitting the query into sub-queries before explaining.
const complexJoinThreshold = 2

// smallResultThreshold is the row-count boundary between RE's small-
// result (single LLM call) and large-result (statistics + sampling)
// paths.
const smallResultThreshold = 50

// Run branches on the result shape: empty results short-circuit without
// an LLM call, small results go through ExplainResults, large results
// through SummarizeLargeResults, and queries joining three or more
// tables are offered to SplitComplexQuery first.
func (re *ResultExplainer) Run(ctx context.Context, question, sql string, columns []string, rows []map[string]any) Result {
	b := newResultBuilder("result_explainer", re.Log)

	if len(rows) == 0 {
		return b.ok(REData{Explanation: "The query returned no rows."}, "empty result short-circuit")
	}

	if countJoins(sql) >= complexJoinThreshold {
		if data, ok := re.runComplexJoin(ctx, question, sql, b); ok {
			return b.ok(data, "explained via sub-query decomposition")
		}
	}

	if len(rows) <= smallResultThreshold {
		expResult := re.Tools.ExplainResults(ctx, question, sql, columns, rows)
		b.record("explain_results", expResult.Success, expResult.Tokens)
		if expResult.Success {
			explanation, _ := expResult.Data.(string)
			return b.ok(REData{Explanation: explanation}, "small result")
		}
		return b.fail(fmt.Errorf("explain_results: %s", expResult.Error))
	}

	sumResult := re.Tools.SummarizeLargeResults(ctx, question, sql, columns, rows)
	b.record("summarize_large_results", sumResult.Success, sumResult.Tokens)
	if !sumResult.Success {
		return b.fail(fmt.Errorf("summarize_large_results: %s", sumResult.Error))
	}
	payload, _ := sumResult.Data.(map[string]any)
	explanation, _ := payload["explanation"].(string)
	stats, _ := payload["statistics"].([]tools.ColumnStats)
	return b.ok(REData{Explanation: explanation, Statistics: stats}, "large result")
}

// runComplexJoin asks SplitComplexQuery whether to decompose, and when
// it recommends splitting, executes and explains each sub-query in turn.
// A should_split=false (or an extraction failure) means "do not split",
// not an error. The caller falls through to the normal small/large path.
func (re *ResultExplainer) runComplexJoin(ctx context.Context, question, sql string, b *resultBuilder) (REData, bool) {
	splitResult := re.Tools.SplitComplexQuery(ctx, question, sql)
	b.record("split_complex_query", splitResult.Success, splitResult.Tokens)
	if !splitResult.Success {
		return REData{}, false
	}
	plan, ok := splitResult.Data.(tools.SplitQueryResult)
	if !ok || !plan.ShouldSplit || len(plan.Queries) == 0 {
		return REData{}, false
	}

	subExplanations := make([]SubQueryExplanation, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		qr, err := tools.ExecuteSubQuery(ctx, re.Adapter, q.SQL)
		b.record("execute_sub_query", err == nil, 0) // adapter call, never spends tokens
		if err != nil {
			subExplanations = append(subExplanations, SubQueryExplanation{SQL: q.SQL, Description: q.Description, Explanation: "failed: " + err.Error()})
			continue
		}
		expResult := re.Tools.ExplainResults(ctx, question, q.SQL, qr.Columns, qr.Rows)
		b.record("explain_results", expResult.Success, expResult.Tokens)
		explanation, _ := expResult.Data.(string)
		subExplanations = append(subExplanations, SubQueryExplanation{SQL: q.SQL, Description: q.Description, Explanation: explanation})
	}

	var combined strings.Builder
	for _, se := range subExplanations {
		fmt.Fprintf(&combined, "%s: %s\n", se.Description, se.Explanation)
	}
	return REData{Explanation: strings.TrimSpace(combined.String()), SubQueries: subExplanations}, true
}

func countJoins(sql string) int {
	return strings.Count(strings.ToUpper(sql), " JOIN ")
}
