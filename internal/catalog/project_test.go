package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *Catalog {
	return &Catalog{
		tables: map[string]*TableDescriptor{
			"subjects": {
				Name: "subjects",
				Columns: []ColumnDescriptor{
					{Name: "subject_id", Semantic: TypeInteger, IsPrimaryKey: true},
					{Name: "site_id", Semantic: TypeInteger},
					{Name: "country", Semantic: TypeText, SampleValues: []string{"JPN"}},
				},
				PrimaryKeys: []string{"subject_id"},
				RowCount:    100,
				ForeignKeys: []ForeignKeyEdge{{Column: "site_id", TargetTable: "sites", TargetColumn: "site_id"}},
			},
			"sites": {
				Name: "sites",
				Columns: []ColumnDescriptor{
					{Name: "site_id", Semantic: TypeInteger, IsPrimaryKey: true},
					{Name: "site_number", Semantic: TypeText},
				},
				PrimaryKeys: []string{"site_id"},
				RowCount:    20,
			},
		},
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	c := sampleCatalog()
	out1 := c.Project([]string{"subjects", "sites"}, 2000, DetailMedium)
	out2 := c.Project([]string{"subjects", "sites"}, 2000, DetailMedium)
	require.Equal(t, out1, out2, "projecting the same inputs twice must be byte-identical")
}

func TestProjectEmitsJoinHint(t *testing.T) {
	c := sampleCatalog()
	out := c.Project([]string{"subjects", "sites"}, 2000, DetailMedium)
	assert.Contains(t, out, "-- JOIN: subjects.site_id = sites.site_id")
}

func TestProjectTruncatesOnTinyBudget(t *testing.T) {
	c := sampleCatalog()
	out := c.Project([]string{"subjects", "sites"}, 1, DetailMedium)
	assert.Contains(t, out, "truncated")
}

func TestProjectCompactIsOneLinePerTable(t *testing.T) {
	c := sampleCatalog()
	out := renderCompact(c.tables["sites"])
	assert.Equal(t, "sites[site_id:integer,site_number:text]", out)
}

func TestSearchColumnsFindsSubstringAcrossTables(t *testing.T) {
	c := sampleCatalog()
	hits := c.SearchColumns("site")
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Table+"."+h.Column)
	}
	assert.Contains(t, names, "subjects.site_id")
	assert.Contains(t, names, "sites.site_id")
	assert.Contains(t, names, "sites.site_number")
}

func TestMentionsDatabaseItself(t *testing.T) {
	assert.True(t, MentionsDatabaseItself("How many studies are in the database?"))
	assert.True(t, MentionsDatabaseItself("what is the database structure"))
	assert.False(t, MentionsDatabaseItself("show patients at site 18"))
}
