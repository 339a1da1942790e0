package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinsql/internal/catalog"
	"clinsql/internal/preprocessor"
	"clinsql/internal/tools"
)

func sampleIRCatalog() *catalog.Catalog {
	return catalog.NewFromTables(map[string]*catalog.TableDescriptor{
		"_studies":             {Name: "_studies", IsMetadata: true},
		"_table_metadata":      {Name: "_table_metadata", IsMetadata: true},
		"subjects":             {Name: "subjects"},
		"sites":                {Name: "sites", Category: "visit"},
		"visits":               {Name: "visits", Category: "visit"},
		"adverse_events":       {Name: "adverse_events", Category: "safety"},
		"subject_level_metric": {Name: "subject_level_metric"},
	})
}

func emptyContextRetrieval() tools.ContextRetrieval {
	return tools.ContextRetrieval{RelevantTables: map[string]*tools.TableContextHit{}}
}

func TestResolveRelevantTablesPoolsEntityMatches(t *testing.T) {
	cat := sampleIRCatalog()
	entityRetrieval := tools.EntityRetrieval{
		ByKeyword: map[string][]preprocessor.EntityMatch{
			"subject": {{Value: "S001", Table: "subjects", Column: "subject_id", Similarity: 0.9}},
		},
	}

	got := resolveRelevantTables(cat, "find subject S001", tools.ParsedKeywords{Keywords: []string{"subject"}}, entityRetrieval, emptyContextRetrieval())
	assert.Equal(t, []string{"subjects"}, got)
}

func TestResolveRelevantTablesPoolsContextHits(t *testing.T) {
	cat := sampleIRCatalog()
	contextRetrieval := tools.ContextRetrieval{
		RelevantTables: map[string]*tools.TableContextHit{
			"subject_level_metric": {BestSimilarity: 0.5},
		},
	}

	got := resolveRelevantTables(cat, "some metric question", tools.ParsedKeywords{}, tools.EntityRetrieval{}, contextRetrieval)
	assert.Equal(t, []string{"subject_level_metric"}, got)
}

func TestResolveRelevantTablesPoolsClinicalTermCategories(t *testing.T) {
	cat := sampleIRCatalog()
	parsed := tools.ParsedKeywords{ClinicalTerms: []string{"SAE"}}

	got := resolveRelevantTables(cat, "how many SAEs occurred?", parsed, tools.EntityRetrieval{}, emptyContextRetrieval())
	assert.Equal(t, []string{"adverse_events"}, got)
}

func TestResolveRelevantTablesPoolsKeywordCategories(t *testing.T) {
	cat := sampleIRCatalog()
	parsed := tools.ParsedKeywords{Keywords: []string{"site", "visit"}}

	got := resolveRelevantTables(cat, "which sites had visits?", parsed, tools.EntityRetrieval{}, emptyContextRetrieval())
	assert.Equal(t, []string{"sites", "visits"}, got)
}

func TestResolveRelevantTablesForcesMetadataTables(t *testing.T) {
	cat := sampleIRCatalog()

	got := resolveRelevantTables(cat, "how many studies are there?", tools.ParsedKeywords{}, tools.EntityRetrieval{}, emptyContextRetrieval())
	assert.Equal(t, []string{"_studies", "_table_metadata"}, got)
}

func TestResolveRelevantTablesDropsUnknownTables(t *testing.T) {
	cat := sampleIRCatalog()
	entityRetrieval := tools.EntityRetrieval{
		ByKeyword: map[string][]preprocessor.EntityMatch{
			"ghost": {{Value: "x", Table: "does_not_exist"}},
		},
	}

	got := resolveRelevantTables(cat, "ghost question", tools.ParsedKeywords{}, entityRetrieval, emptyContextRetrieval())
	assert.Empty(t, got)
}
