package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsql/internal/tools"
)

func TestCountJoins(t *testing.T) {
	assert.Equal(t, 0, countJoins("SELECT * FROM subjects"))
	assert.Equal(t, 1, countJoins("SELECT * FROM subjects s JOIN sites si ON s.site_id = si.site_id"))
	assert.Equal(t, 2, countJoins("SELECT * FROM a JOIN b ON a.id=b.id JOIN c ON b.id=c.id"))
}

func TestResultExplainerEmptyRowsShortCircuits(t *testing.T) {
	re := &ResultExplainer{Tools: &tools.RETools{}}
	result := re.Run(context.Background(), "how many subjects?", "SELECT * FROM subjects", []string{"id"}, nil)

	require.True(t, result.Success)
	data, ok := result.Data.(REData)
	require.True(t, ok)
	assert.Contains(t, data.Explanation, "no rows")
	assert.Empty(t, result.ToolCalls, "empty-result path must not call any tool")
}
