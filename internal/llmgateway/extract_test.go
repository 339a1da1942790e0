package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQLFencedBlock(t *testing.T) {
	text := "Here is the query:\n```sql\nSELECT * FROM subjects;\n```\nDone."
	sql, err := ExtractSQL(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM subjects;", sql)
}

func TestExtractSQLFencedWithoutLanguageTag(t *testing.T) {
	text := "```\nSELECT count(*) FROM sites\n```"
	sql, err := ExtractSQL(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM sites", sql)
}

func TestExtractSQLBareStatement(t *testing.T) {
	text := "The answer is SELECT subject_id FROM subjects WHERE country = 'JPN';"
	sql, err := ExtractSQL(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT subject_id FROM subjects WHERE country = 'JPN';", sql)
}

func TestExtractSQLFailsOnNoStatement(t *testing.T) {
	_, err := ExtractSQL("I cannot answer that question.")
	assert.Error(t, err)
}

func TestExtractJSONDirectParse(t *testing.T) {
	var out struct {
		Keywords []string `json:"keywords"`
	}
	err := ExtractJSON(`{"keywords": ["site", "query"]}`, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "query"}, out.Keywords)
}

func TestExtractJSONFencedBlock(t *testing.T) {
	var out struct {
		Tables []string `json:"tables"`
	}
	text := "Sure, here you go:\n```json\n{\"tables\": [\"subjects\"]}\n```"
	err := ExtractJSON(text, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"subjects"}, out.Tables)
}

func TestExtractJSONFirstBraceSpan(t *testing.T) {
	var out struct {
		ShouldSplit bool `json:"should_split"`
	}
	text := "Reasoning first. {\"should_split\": true} trailing commentary."
	err := ExtractJSON(text, &out)
	require.NoError(t, err)
	assert.True(t, out.ShouldSplit)
}

func TestExtractJSONFailsOnGarbage(t *testing.T) {
	var out map[string]any
	err := ExtractJSON("no json here at all", &out)
	assert.Error(t, err)
}
