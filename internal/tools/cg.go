package tools

import (
	"context"
	"fmt"

	"clinsql/internal/llmgateway"
)

// CGTools are the per-strategy SQL generator and the revise loop's
// single repair call.
type CGTools struct {
	GW *llmgateway.Gateway
}

// Strategy is one of the fixed prompt templates CG cycles through.
type Strategy struct {
	Name        string
	Temperature float64
}

// Strategies is the fixed sequence CG takes a prefix of, in order.
var Strategies = []Strategy{
	{Name: "standard", Temperature: 0.10},
	{Name: "cot", Temperature: 0.20},
	{Name: "decomposition", Temperature: 0.15},
}

// clinicalHeuristics captures two embedded domain conventions verbatim:
// three-letter country codes and a subject_level_metric preference.
// These stay as fixed prompt text rather than configurable rules.
const clinicalHeuristics = `Clinical-trial SQL conventions:
- Country columns store ISO three-letter codes (e.g. 'JPN', 'USA', 'GBR'), never full country names. Translate a country name in the question to its three-letter code before writing a literal comparison.
- When a question could be answered from either a per-visit table or a pre-aggregated subject_level_metric-style table, prefer the subject_level_metric table.`

func systemPromptFor(strategy string) string {
	switch strategy {
	case "standard":
		return "You are a SQL generator for a clinical-trial relational database. Write one correct SQL query that answers the question using only the given schema.\n" + clinicalHeuristics + "\nReturn only the SQL, in a ```sql fenced block."
	case "cot":
		return "You are a SQL generator for a clinical-trial relational database. Think step by step about which tables and joins are needed, then write one correct SQL query.\n" + clinicalHeuristics + "\nShow your reasoning briefly, then return the final SQL in a ```sql fenced block."
	case "decomposition":
		return "You are a SQL generator for a clinical-trial relational database. Decompose the question into sub-steps and express the final query using CTEs (WITH clauses) that mirror those sub-steps.\n" + clinicalHeuristics + "\nReturn only the SQL, in a ```sql fenced block."
	default:
		return "You are a SQL generator for a clinical-trial relational database.\n" + clinicalHeuristics + "\nReturn only the SQL, in a ```sql fenced block."
	}
}

// GenerateCandidate runs one strategy's fixed prompt template, embedding
// the schema_context and, when present, an ENTITY MATCHES block derived
// from IR results.
func (t *CGTools) GenerateCandidate(ctx context.Context, question, schemaContext, entityBlock string, strategy Strategy) ToolResult {
	user := fmt.Sprintf("Question: %s\n\nSchema:\n%s", question, schemaContext)
	if entityBlock != "" {
		user += "\n\nENTITY MATCHES FROM DATABASE:\n" + entityBlock
	}

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: systemPromptFor(strategy.Name)},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", strategy.Temperature, 1200, false)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	sql, err := llmgateway.ExtractSQL(resp.Content)
	if err != nil {
		return FailTokens(err, tokens)
	}
	return OkTokens(sql, tokens)
}

const reviseSystemPrompt = `You repair a SQL query for a clinical-trial database that failed validation or execution.
You are given the faulty SQL, the error message, the original question, and the schema. Return only the corrected SQL, in a ` + "```sql" + ` fenced block.`

// Revise is the single LLM call in CG's repair loop: given the faulty
// SQL, error text, question, and schema_context, returns corrected SQL.
func (t *CGTools) Revise(ctx context.Context, question, schemaContext, faultySQL, errText string) ToolResult {
	user := fmt.Sprintf("Question: %s\n\nSchema:\n%s\n\nFaulty SQL:\n%s\n\nError:\n%s",
		question, schemaContext, faultySQL, errText)

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: reviseSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.1, 1200, false)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	sql, err := llmgateway.ExtractSQL(resp.Content)
	if err != nil {
		return FailTokens(err, tokens)
	}
	return OkTokens(sql, tokens)
}
