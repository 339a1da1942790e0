// Package tools holds the stateless operations each agent exposes to
// itself: extract_keywords, retrieve_entity, select_tables,
// generate_candidate_query, revise, generate_unit_test, evaluate,
// explain_results, and friends. Every tool returns a ToolResult and
// never throws for expected failures: agents aggregate these into
// their own AgentResult.
package tools

// ToolResult is the uniform envelope every tool returns. If Success is
// false, Data is nil and Error is non-empty. Tokens carries the LLM
// usage spent producing this result, zero for tools that never call
// the gateway.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Tokens  int    `json:"tokens,omitempty"`
}

// Ok wraps a successful tool result that spent no LLM tokens.
func Ok(data any) ToolResult { return ToolResult{Success: true, Data: data} }

// OkTokens wraps a successful tool result that spent tokens calling
// the LLM gateway.
func OkTokens(data any, tokens int) ToolResult {
	return ToolResult{Success: true, Data: data, Tokens: tokens}
}

// Fail wraps a failed tool result; a failed result never carries data.
func Fail(err error) ToolResult { return ToolResult{Success: false, Error: err.Error()} }

// FailTokens wraps a failed tool result that still spent tokens before
// failing (e.g. the completion succeeded but parsing its output did not).
func FailTokens(err error, tokens int) ToolResult {
	return ToolResult{Success: false, Error: err.Error(), Tokens: tokens}
}

// ParsedKeywords is IR's output bundle.
type ParsedKeywords struct {
	Keywords      []string `json:"keywords"`
	Entities      []string `json:"entities"`
	ClinicalTerms []string `json:"clinical_terms"`
	Filters       []string `json:"filters"`
}

// TableRole tags why SS picked a table.
type TableRole string

const (
	RolePrimary TableRole = "primary"
	RoleJoin    TableRole = "join"
	RoleFilter  TableRole = "filter"
)

// SelectedTable is one table SS chose, with its role and reason.
type SelectedTable struct {
	Name   string    `json:"name"`
	Role   TableRole `json:"role"`
	Reason string    `json:"reason"`
}

// ColumnRole tags the clause a selected column plays in.
type ColumnRole string

const (
	ColSelect  ColumnRole = "SELECT"
	ColWhere   ColumnRole = "WHERE"
	ColJoin    ColumnRole = "JOIN"
	ColGroupBy ColumnRole = "GROUP BY"
)

// SelectedColumn is one column SS kept for a table, tagged with role.
type SelectedColumn struct {
	Name string     `json:"name"`
	Role ColumnRole `json:"role"`
}

// LinkedSchema is SS's output.
type LinkedSchema struct {
	SelectedTables []SelectedTable             `json:"selected_tables"`
	ColumnsByTable map[string][]SelectedColumn `json:"columns_by_table"`
	JoinHints      []string                    `json:"join_hints"`
	SchemaContext  string                      `json:"schema_context"`
	PrimaryTable   string                      `json:"primary_table"`
}

// SQLCandidate is one CG candidate.
type SQLCandidate struct {
	Strategy        string           `json:"strategy"`
	SQL             string           `json:"sql"`
	IsValid         bool             `json:"is_valid"`
	Error           string           `json:"error,omitempty"`
	PreviewColumns  []string         `json:"preview_columns,omitempty"`
	PreviewRowCount int              `json:"preview_row_count"`
	PreviewRows     []map[string]any `json:"preview_rows,omitempty"`
	WasRevised      bool             `json:"was_revised"`
}

// UnitTest is one natural-language assertion about a correct answer,
// evaluated by an LLM against candidate SQL text rather than executed.
type UnitTest struct {
	Description      string `json:"description"`
	ExpectedBehavior string `json:"expected_behavior"`
	TestType         string `json:"test_type"` // columns|aggregation|filter|join|result_type
}

// Evaluation is one test's verdict across every valid candidate.
type Evaluation struct {
	Test         UnitTest       `json:"test"`
	CandidatePass map[int]bool   `json:"candidate_pass"`
	Reasoning     map[int]string `json:"reasoning"`
	BestIndex     int            `json:"best_index"`
}
