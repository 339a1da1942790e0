package preprocessor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditDistanceSimilarityIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, EditDistanceSimilarity("JPN", "JPN"))
}

func TestEditDistanceSimilarityBounded(t *testing.T) {
	sim := EditDistanceSimilarity("Japan", "JPN")
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestMinHashLSHFindsExactValue(t *testing.T) {
	lsh := NewMinHashLSH()
	lsh.Add(IndexedValue{Value: "JPN", Table: "subjects", Column: "country"})
	lsh.Add(IndexedValue{Value: "USA", Table: "subjects", Column: "country"})

	matches := lsh.Query("JPN", 5)
	require.NotEmpty(t, matches)
	assert.Equal(t, "JPN", matches[0].Value.Value)
}

func TestRetrieveEntitiesBlendsJaccardAndEditDistance(t *testing.T) {
	p := New()
	p.lsh.Add(IndexedValue{Value: "JPN", Table: "subjects", Column: "country"})

	matches := p.RetrieveEntities("Japan", 5)
	require.NotEmpty(t, matches)
	assert.Equal(t, "JPN", matches[0].Value)
	assert.GreaterOrEqual(t, matches[0].Similarity, 0.0)
}

func TestDescriptionIndexSearchRanksExactTermHigher(t *testing.T) {
	idx := NewDescriptionIndex()
	idx.Add(Document{Kind: "table", Table: "subjects"}, "Table subjects contains: Subject Id, Site Id, Country")
	idx.Add(Document{Kind: "table", Table: "payments"}, "Table payments contains: Payment Id, Amount, Currency")

	hits := idx.Search("subject site country", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "subjects", hits[0].Doc.Table)
}

func TestSaveLoadRoundTripProducesIdenticalBytes(t *testing.T) {
	p := New()
	countries := []string{"JPN", "USA", "GBR", "FRA", "DEU", "CHN", "IND", "BRA", "CAN", "AUS"}
	for _, c := range countries {
		p.lsh.Add(IndexedValue{Value: c, Table: "subjects", Column: "country"})
	}
	p.desc.Add(Document{Kind: "table", Table: "subjects"}, "Table subjects contains: Country")
	p.stats = Stats{TotalValuesIndexed: len(countries), TotalDescriptions: 1, TablesProcessed: 1}

	dir := t.TempDir()
	path := filepath.Join(dir, "preprocessor.bin")

	require.NoError(t, p.Save(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded := New()
	ok, err := loaded.Load(path)
	require.NoError(t, err)
	require.True(t, ok)

	path2 := filepath.Join(dir, "preprocessor2.bin")
	require.NoError(t, loaded.Save(path2))
	second, err := os.ReadFile(path2)
	require.NoError(t, err)

	assert.Equal(t, first, second, "save -> load -> save must produce identical bytes")
}

func TestLoadMissingCacheReportsFalseNotError(t *testing.T) {
	p := New()
	ok, err := p.Load(filepath.Join(t.TempDir(), "missing.bin"))
	require.NoError(t, err)
	assert.False(t, ok)
}
