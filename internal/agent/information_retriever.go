package agent

import (
	"context"
	"sort"
	"strings"

	"clinsql/internal/catalog"
	"clinsql/internal/logging"
	"clinsql/internal/tools"
)

// InformationRetriever is the first pipeline stage.
type InformationRetriever struct {
	Tools *tools.IRTools
	Cat   *catalog.Catalog
	Log   *logging.Logger
}

// IRData is IR's output.
type IRData struct {
	Question       string                  `json:"question"`
	Keywords       []string                `json:"keywords"`
	Entities       []string                `json:"entities"`
	Context        tools.ContextRetrieval  `json:"context"`
	RelevantTables []string                `json:"relevant_tables"`
}

// Run executes IR's three-step pipeline: extract_keywords,
// retrieve_entity, retrieve_context, folding the three candidate
// sources (entity matches, context hits, static category terms) plus
// the forced-metadata-table rule into relevant_tables.
func (ir *InformationRetriever) Run(ctx context.Context, question string) Result {
	b := newResultBuilder("information_retriever", ir.Log)

	kwResult := ir.Tools.ExtractKeywords(ctx, question)
	b.record("extract_keywords", kwResult.Success, kwResult.Tokens)
	parsed, _ := kwResult.Data.(tools.ParsedKeywords)

	entityResult := ir.Tools.RetrieveEntity(ctx, parsed.Keywords)
	b.record("retrieve_entity", entityResult.Success, entityResult.Tokens)
	entityRetrieval, _ := entityResult.Data.(tools.EntityRetrieval)

	contextResult := ir.Tools.RetrieveContext(ctx, question)
	b.record("retrieve_context", contextResult.Success, contextResult.Tokens)
	contextRetrieval, _ := contextResult.Data.(tools.ContextRetrieval)
	if contextRetrieval.RelevantTables == nil {
		contextRetrieval.RelevantTables = make(map[string]*tools.TableContextHit)
	}

	var entityLiterals []string
	for _, matches := range entityRetrieval.ByKeyword {
		for _, m := range matches {
			entityLiterals = append(entityLiterals, m.Value)
		}
	}

	relevantTables := resolveRelevantTables(ir.Cat, question, parsed, entityRetrieval, contextRetrieval)

	data := IRData{
		Question:       question,
		Keywords:       parsed.Keywords,
		Entities:       append(parsed.Entities, entityLiterals...),
		Context:        contextRetrieval,
		RelevantTables: relevantTables,
	}

	reasoning := "resolved " + strings.Join(relevantTables, ", ")
	return b.ok(data, reasoning)
}

// resolveRelevantTables folds entity matches, context hits, clinical-term
// category mappings, and the forced-metadata-table rule into a sorted,
// catalog-verified set of table names.
func resolveRelevantTables(cat *catalog.Catalog, question string, parsed tools.ParsedKeywords, entityRetrieval tools.EntityRetrieval, contextRetrieval tools.ContextRetrieval) []string {
	relevantSet := make(map[string]bool)

	for _, matches := range entityRetrieval.ByKeyword {
		for _, m := range matches {
			relevantSet[m.Table] = true
		}
	}

	for table := range contextRetrieval.RelevantTables {
		relevantSet[table] = true
	}

	for _, term := range parsed.ClinicalTerms {
		if c, ok := catalog.CategoryForTerm(term); ok {
			for _, table := range cat.TablesByCategory(c) {
				relevantSet[table] = true
			}
		}
	}
	for _, kw := range parsed.Keywords {
		if c, ok := catalog.CategoryForTerm(kw); ok {
			for _, table := range cat.TablesByCategory(c) {
				relevantSet[table] = true
			}
		}
	}

	if catalog.MentionsDatabaseItself(question) {
		relevantSet["_studies"] = true
		relevantSet["_table_metadata"] = true
	}

	relevantTables := make([]string, 0, len(relevantSet))
	for t := range relevantSet {
		if _, err := cat.Table(t); err == nil {
			relevantTables = append(relevantTables, t)
		}
	}
	sort.Strings(relevantTables)
	return relevantTables
}
