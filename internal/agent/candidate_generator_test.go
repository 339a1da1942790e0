package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinsql/internal/tools"
)

func TestSortCandidatesValidFirstPreservesStrategyOrderWithinGroups(t *testing.T) {
	candidates := []tools.SQLCandidate{
		{Strategy: "standard", IsValid: false},
		{Strategy: "cot", IsValid: true},
		{Strategy: "decomposition", IsValid: false},
		{Strategy: "extra", IsValid: true},
	}
	sortCandidatesValidFirst(candidates)

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.Strategy
	}
	assert.Equal(t, []string{"cot", "extra", "standard", "decomposition"}, got)
}

func TestSortCandidatesValidFirstNoopWhenAllValid(t *testing.T) {
	candidates := []tools.SQLCandidate{
		{Strategy: "standard", IsValid: true},
		{Strategy: "cot", IsValid: true},
	}
	sortCandidatesValidFirst(candidates)
	assert.Equal(t, "standard", candidates[0].Strategy)
	assert.Equal(t, "cot", candidates[1].Strategy)
}
