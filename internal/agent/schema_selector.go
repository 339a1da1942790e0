package agent

import (
	"context"

	"clinsql/internal/catalog"
	"clinsql/internal/logging"
	"clinsql/internal/tools"
)

// SchemaSelector is the second pipeline stage.
type SchemaSelector struct {
	Tools *tools.SSTools
	Cat   *catalog.Catalog
	Log   *logging.Logger
}

// SSData is SS's output.
type SSData struct {
	SelectedTables []tools.SelectedTable            `json:"selected_tables"`
	ColumnsByTable map[string][]tools.SelectedColumn `json:"columns_by_table"`
	JoinHints      []string                          `json:"join_hints"`
	SchemaContext  string                             `json:"schema_context"`
	PrimaryTable   string                             `json:"primary_table"`
}

// Run executes SS's step A (select_tables) then step B (select_columns
// per chosen table), falling back to the first five candidates with all
// columns kept if step A fails entirely.
func (ss *SchemaSelector) Run(ctx context.Context, question string, candidateTables, keywordHints []string, maxTables int) Result {
	b := newResultBuilder("schema_selector", ss.Log)

	tablesResult := ss.Tools.SelectTables(ctx, question, candidateTables, keywordHints, maxTables)
	b.record("select_tables", tablesResult.Success, tablesResult.Tokens)

	var selected []tools.SelectedTable
	var joinHints []string
	if sr, ok := tablesResult.Data.(tools.SelectTablesResult); ok {
		selected = sr.Tables
		joinHints = sr.JoinHints
	}
	selected = fallbackTablesIfEmpty(selected, candidateTables)
	primaryTable := resolvePrimaryTable(selected)

	columnsByTable := make(map[string][]tools.SelectedColumn, len(selected))
	tableNames := make([]string, 0, len(selected))
	for _, st := range selected {
		tableNames = append(tableNames, st.Name)
		colResult := ss.Tools.SelectColumns(ctx, question, st.Name)
		b.record("select_columns", colResult.Success, colResult.Tokens)
		if cr, ok := colResult.Data.(tools.SelectColumnsResult); ok {
			columnsByTable[st.Name] = cr.Columns
		}
	}

	schemaContext := ss.Cat.Project(tableNames, 4000, catalog.DetailDetailed)

	data := SSData{
		SelectedTables: selected,
		ColumnsByTable: columnsByTable,
		JoinHints:      joinHints,
		SchemaContext:  schemaContext,
		PrimaryTable:   primaryTable,
	}
	return b.ok(data, "selected "+primaryTable+" and related tables")
}

// fallbackTablesIfEmpty returns selected unchanged unless empty, in which
// case it falls back to the first five candidates as primary tables.
func fallbackTablesIfEmpty(selected []tools.SelectedTable, candidateTables []string) []tools.SelectedTable {
	if len(selected) > 0 {
		return selected
	}
	fallback := candidateTables
	if len(fallback) > 5 {
		fallback = fallback[:5]
	}
	out := make([]tools.SelectedTable, 0, len(fallback))
	for _, name := range fallback {
		out = append(out, tools.SelectedTable{Name: name, Role: tools.RolePrimary, Reason: "fallback"})
	}
	return out
}

// resolvePrimaryTable returns the first RolePrimary table, or the first
// table of any role if none is marked primary.
func resolvePrimaryTable(selected []tools.SelectedTable) string {
	for _, st := range selected {
		if st.Role == tools.RolePrimary {
			return st.Name
		}
	}
	if len(selected) > 0 {
		return selected[0].Name
	}
	return ""
}
