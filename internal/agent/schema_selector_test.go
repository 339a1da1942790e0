package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinsql/internal/tools"
)

func TestFallbackTablesIfEmptyKeepsSelectionWhenNonEmpty(t *testing.T) {
	selected := []tools.SelectedTable{{Name: "subjects", Role: tools.RolePrimary}}
	got := fallbackTablesIfEmpty(selected, []string{"sites", "visits"})
	assert.Equal(t, selected, got)
}

func TestFallbackTablesIfEmptyUsesFirstFiveCandidates(t *testing.T) {
	candidates := []string{"a", "b", "c", "d", "e", "f", "g"}
	got := fallbackTablesIfEmpty(nil, candidates)

	assert.Len(t, got, 5)
	for i, st := range got {
		assert.Equal(t, candidates[i], st.Name)
		assert.Equal(t, tools.RolePrimary, st.Role)
		assert.Equal(t, "fallback", st.Reason)
	}
}

func TestResolvePrimaryTablePrefersPrimaryRole(t *testing.T) {
	selected := []tools.SelectedTable{
		{Name: "sites", Role: tools.RoleJoin},
		{Name: "subjects", Role: tools.RolePrimary},
	}
	assert.Equal(t, "subjects", resolvePrimaryTable(selected))
}

func TestResolvePrimaryTableFallsBackToFirstWhenNoPrimary(t *testing.T) {
	selected := []tools.SelectedTable{
		{Name: "sites", Role: tools.RoleJoin},
		{Name: "visits", Role: tools.RoleFilter},
	}
	assert.Equal(t, "sites", resolvePrimaryTable(selected))
}

func TestResolvePrimaryTableEmptyWhenNoTables(t *testing.T) {
	assert.Equal(t, "", resolvePrimaryTable(nil))
}
