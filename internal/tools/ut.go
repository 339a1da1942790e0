package tools

import (
	"context"
	"fmt"
	"strings"

	"clinsql/internal/llmgateway"
)

// UTTools are the two LLM-backed steps the Unit Tester runs.
type UTTools struct {
	GW *llmgateway.Gateway
}

const generateUnitTestSystemPrompt = `You write unit tests for SQL candidates answering a question, WITHOUT executing anything.
Each test is a natural-language assertion an evaluator will judge against candidate SQL text and previews.
Return strict JSON: {"tests": [{"description": "...", "expected_behavior": "...", "test_type": "columns|aggregation|filter|join|result_type"}]}`

type generateUnitTestResponse struct {
	Tests []UnitTest `json:"tests"`
}

// GenerateUnitTest is UT step 1: one JSON LLM call fed the question and
// all valid candidates' SQL, yielding num_tests tests.
func (t *UTTools) GenerateUnitTest(ctx context.Context, question string, candidates []SQLCandidate, numTests int) ToolResult {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Candidate %d (%s): %s\n", i, c.Strategy, c.SQL)
	}

	user := fmt.Sprintf("Question: %s\n\nGenerate exactly %d tests.\n\nCandidates:\n%s", question, numTests, sb.String())

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: generateUnitTestSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.2, 1000, true)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed generateUnitTestResponse
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return FailTokens(llmgateway.ErrExtractFailed, tokens)
	}
	if len(parsed.Tests) > numTests {
		parsed.Tests = parsed.Tests[:numTests]
	}
	return OkTokens(parsed.Tests, tokens)
}

const evaluateSystemPrompt = `You judge whether each candidate SQL satisfies a single test assertion, given the test and every candidate's SQL, validity, and a small result preview.
Return strict JSON: {"candidate_pass": {"0": true, "1": false, ...}, "reasoning": {"0": "...", "1": "..."}, "best_index": 0}`

type evaluateResponse struct {
	CandidatePass map[string]bool   `json:"candidate_pass"`
	Reasoning     map[string]string `json:"reasoning"`
	BestIndex     int               `json:"best_index"`
}

// Evaluate is UT step 2: one call per test, fed the test plus all valid
// candidates with SQL/validity/preview. Called concurrently across
// tests by the coordinator's bounded worker pool; this function itself
// holds no shared state.
func (t *UTTools) Evaluate(ctx context.Context, test UnitTest, candidates []SQLCandidate) ToolResult {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Candidate %d (%s): valid=%v sql=%s preview_columns=%v preview_rows=%d\n",
			i, c.Strategy, c.IsValid, c.SQL, c.PreviewColumns, c.PreviewRowCount)
	}

	user := fmt.Sprintf("Test: %s\nExpected behavior: %s\nTest type: %s\n\nCandidates:\n%s",
		test.Description, test.ExpectedBehavior, test.TestType, sb.String())

	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: evaluateSystemPrompt},
		{Role: llmgateway.RoleUser, Content: user},
	}, "", 0.0, 600, true)
	if err != nil {
		return Fail(err)
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed evaluateResponse
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return FailTokens(llmgateway.ErrExtractFailed, tokens)
	}

	eval := Evaluation{
		Test:          test,
		CandidatePass: make(map[int]bool, len(parsed.CandidatePass)),
		Reasoning:     make(map[int]string, len(parsed.Reasoning)),
		BestIndex:     parsed.BestIndex,
	}
	for k, v := range parsed.CandidatePass {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err == nil {
			eval.CandidatePass[idx] = v
		}
	}
	for k, v := range parsed.Reasoning {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err == nil {
			eval.Reasoning[idx] = v
		}
	}
	return OkTokens(eval, tokens)
}
