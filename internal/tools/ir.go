package tools

import (
	"context"
	"strings"

	"clinsql/internal/llmgateway"
	"clinsql/internal/preprocessor"
)

// IRTools are the three operations the Information Retriever calls in
// sequence.
type IRTools struct {
	GW    *llmgateway.Gateway
	Pre   *preprocessor.Preprocessor
	Model string
}

const extractKeywordsSystemPrompt = `You extract search keywords from a natural-language question about a clinical-trial database.
Return strict JSON: {"keywords": [...], "entities": [...], "clinical_terms": [...], "filters": [...]}
- keywords: generic terms useful for schema/document retrieval
- entities: literal values that might appear in the database (site names, codes, numbers)
- clinical_terms: clinical-trial domain terms (visit, adverse event, query, coding, enrollment, site, SAE)
- filters: comparison hints like "more than 45 days", "in Japan"

Example 1:
Q: "How many studies are in the database?"
{"keywords": ["studies", "database"], "entities": [], "clinical_terms": [], "filters": []}

Example 2:
Q: "Show patients at Site 18 with more than 45 days open queries"
{"keywords": ["patients", "site", "open queries"], "entities": ["Site 18"], "clinical_terms": ["query", "site"], "filters": ["more than 45 days"]}

Example 3:
Q: "Average query age for open queries?"
{"keywords": ["average query age", "open queries"], "entities": [], "clinical_terms": ["query"], "filters": ["status=open"]}`

// ExtractKeywords is IR's first tool: one LLM call in JSON mode, with a
// whitespace-tokenization fallback on any failure.
func (t *IRTools) ExtractKeywords(ctx context.Context, question string) ToolResult {
	resp, err := t.GW.Complete(ctx, []llmgateway.Message{
		{Role: llmgateway.RoleSystem, Content: extractKeywordsSystemPrompt},
		{Role: llmgateway.RoleUser, Content: question},
	}, t.Model, 0.0, 500, true)
	if err != nil {
		return Ok(fallbackKeywords(question))
	}
	tokens := resp.Usage.Input + resp.Usage.Output

	var parsed ParsedKeywords
	if err := llmgateway.ExtractJSON(resp.Content, &parsed); err != nil {
		return OkTokens(fallbackKeywords(question), tokens)
	}
	return OkTokens(parsed, tokens)
}

func fallbackKeywords(question string) ParsedKeywords {
	var kws []string
	for _, w := range strings.Fields(question) {
		w = strings.ToLower(strings.Trim(w, ".,?!;:"))
		if len(w) >= 2 {
			kws = append(kws, w)
		}
	}
	return ParsedKeywords{Keywords: kws}
}

// EntityRetrieval groups LSH matches per keyword.
type EntityRetrieval struct {
	ByKeyword map[string][]preprocessor.EntityMatch `json:"by_keyword"`
}

// RetrieveEntity queries the LSH index with K=5 for every keyword of
// length >= 2.
func (t *IRTools) RetrieveEntity(_ context.Context, keywords []string) ToolResult {
	out := EntityRetrieval{ByKeyword: make(map[string][]preprocessor.EntityMatch)}
	for _, kw := range keywords {
		if len(kw) < 2 {
			continue
		}
		matches := t.Pre.RetrieveEntities(kw, 5)
		if len(matches) > 0 {
			out.ByKeyword[kw] = matches
		}
	}
	return Ok(out)
}

// ContextRetrieval is the folded relevant_tables bundle.
type ContextRetrieval struct {
	RelevantTables map[string]*TableContextHit `json:"relevant_tables"`
}

// TableContextHit accumulates column hits and the best similarity seen
// for one table across the description-index results.
type TableContextHit struct {
	ColumnHits    []string `json:"column_hits"`
	BestSimilarity float64 `json:"best_similarity"`
}

// RetrieveContext queries the description index with the full question,
// K=10, folding results into relevant_tables.
func (t *IRTools) RetrieveContext(_ context.Context, question string) ToolResult {
	hits := t.Pre.RetrieveContext(question, 10)
	out := ContextRetrieval{RelevantTables: make(map[string]*TableContextHit)}
	for _, h := range hits {
		entry, ok := out.RelevantTables[h.Table]
		if !ok {
			entry = &TableContextHit{}
			out.RelevantTables[h.Table] = entry
		}
		if h.Kind == "column" && h.Column != "" {
			entry.ColumnHits = append(entry.ColumnHits, h.Column)
		}
		if h.Similarity > entry.BestSimilarity {
			entry.BestSimilarity = h.Similarity
		}
	}
	return Ok(out)
}
