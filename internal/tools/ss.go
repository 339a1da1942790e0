package tools

import (
	"context"
	"fmt"
	"strings"

	"clinsql/internal/catalog"
	"clinsql/internal/llmgateway"
)

// SSTools are the two LLM-backed steps the Schema Selector runs per
// question.
type SSTools struct {
	GW    *llmgateway.Gateway
	Cat   *catalog.Catalog
	Model string
}

const selectTablesSystemPrompt = `You select the tables needed to answer a question about a clinical-trial database.
You are given a compact schema of candidate tables and keyword hints. Return strict JSON:
{"tables": [{"name": "...", "role": "primary|join|filter", "reason": "..."}], "join_hints": ["t1.c1 = t2.c2", ...]}
Pick at most the requested number of tables, ordered with the most central table first.`

// SelectTablesResult is SelectTables' successful result payload.
type SelectTablesResult struct {
	Tables    []SelectedTable `json:"tables"`
	JoinHints []string        `json:"join_hints"`
}

// SelectTables is SS step A: one LLM JSON call over a medium-detail
// compact schema of up to ~15 candidates.
func (t *SSTools) SelectTables(ctx context.Context, question string, candidateTables []string, keywordHints []string, maxTables int) ToolResult {
	if len(candidateTables) > 15 {
		candidateTables = candidateTables[:15]
	}
	compact := t.Cat.Project(candidateTables, 3000, catalog.DetailMedium)

	user := fmt.Sprintf("Question: %s\n\nKeyword hints: %s\n\nCandidate schema (max %d tables):\n%s",
		question, strings.Join(keywordHints, ", "), maxTables, compact)

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: selectTablesSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, t.Model, 0.0, 800, true)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed SelectTablesResult
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return FailTokens(llmgateway.ErrExtractFailed, tokens)
	}

	// Drop any table the LLM invented that isn't in the catalog: every
	// selected table must exist.
	var valid []SelectedTable
	for _, st := range parsed.Tables {
		if _, err := t.Cat.Table(st.Name); err == nil {
			valid = append(valid, st)
		}
		if len(valid) >= maxTables {
			break
		}
	}
	if len(valid) == 0 {
		return FailTokens(llmgateway.ErrExtractFailed, tokens)
	}

	return OkTokens(SelectTablesResult{Tables: valid, JoinHints: parsed.JoinHints}, tokens)
}

const selectColumnsSystemPrompt = `You select the columns needed from one table to answer a question, tagging each with its clause role.
Return strict JSON: {"columns": [{"name": "...", "role": "SELECT|WHERE|JOIN|GROUP BY"}]}`

// SelectColumnsResult is SelectColumns' result payload.
type SelectColumnsResult struct {
	Columns []SelectedColumn `json:"columns"`
}

// SelectColumns is SS step B: per chosen table, one LLM JSON call
// returning needed columns and roles; on failure all columns are kept.
func (t *SSTools) SelectColumns(ctx context.Context, question, tableName string) ToolResult {
	td, err := t.Cat.Table(tableName)
	if err != nil {
		return Fail(err)
	}

	var colNames []string
	for _, c := range td.Columns {
		colNames = append(colNames, fmt.Sprintf("%s (%s)", c.Name, c.Semantic))
	}
	user := fmt.Sprintf("Question: %s\n\nTable %s columns: %s", question, tableName, strings.Join(colNames, ", "))

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: selectColumnsSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, t.Model, 0.0, 500, true)
	if err != nil {
		return Ok(SelectColumnsResult{Columns: allColumns(td)})
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed SelectColumnsResult
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return OkTokens(SelectColumnsResult{Columns: allColumns(td)}, tokens)
	}

	var valid []SelectedColumn
	for _, sc := range parsed.Columns {
		if td.ColumnOf(sc.Name) {
			valid = append(valid, sc)
		}
	}
	if len(valid) == 0 {
		return OkTokens(SelectColumnsResult{Columns: allColumns(td)}, tokens)
	}
	return OkTokens(SelectColumnsResult{Columns: valid}, tokens)
}

func allColumns(td *catalog.TableDescriptor) []SelectedColumn {
	cols := make([]SelectedColumn, 0, len(td.Columns))
	for _, c := range td.Columns {
		cols = append(cols, SelectedColumn{Name: c.Name, Role: ColSelect})
	}
	return cols
}
